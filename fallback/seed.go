package fallback

import (
	"time"

	"github.com/lborres/blogdesk/core"
)

const day = 24 * time.Hour

func seedData(now time.Time) ([]accountRecord, []blogRecord, []core.ActivityLogEntry) {
	users := []accountRecord{
		{ID: "superadmin-001", Identity: "superadmin@admin.com", FullName: "Super Admin", Role: RoleSuperAdmin, CreatedAt: now},
		{ID: "admin-001", Identity: "admin@admin.com", FullName: "John Doe", Role: RoleAdmin, CreatedAt: now},
	}

	post := func(id, title, content, author, authorID string, status core.BlogStatus, age time.Duration) blogRecord {
		at := now.Add(-age)
		return blogRecord{
			BlogPost: core.BlogPost{ID: id, Title: title, Content: content, Author: author, Status: status, CreatedAt: at, UpdatedAt: at},
			AuthorID: authorID,
		}
	}
	blogs := []blogRecord{
		post("blog-001", "Getting Started with Admin Panel",
			"Welcome to the admin panel! This guide will help you get started with managing your blog content effectively.",
			"Super Admin", "superadmin-001", core.StatusPublished, 7*day),
		post("blog-002", "Best Practices for Content Management",
			"Learn the best practices for managing your content efficiently using our powerful admin tools.",
			"John Doe", "admin-001", core.StatusPublished, 3*day),
		post("blog-003", "Upcoming Features Preview",
			"Take a sneak peek at the exciting new features we are working on for the next release.",
			"Super Admin", "superadmin-001", core.StatusDraft, 1*day),
	}

	logs := make([]core.ActivityLogEntry, 0, len(blogs))
	for i, b := range blogs {
		logs = append(logs, core.ActivityLogEntry{
			ID:         seedLogIDs[i],
			Date:       b.CreatedAt,
			ActorID:    b.AuthorID,
			ActorName:  b.Author,
			Action:     core.ActionCreate,
			EntityKind: core.EntityBlog,
			EntityName: b.Title,
		})
	}
	return users, blogs, logs
}

var seedLogIDs = []string{"log-001", "log-002", "log-003"}
