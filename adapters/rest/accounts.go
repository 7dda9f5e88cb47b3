package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/lborres/blogdesk/core"
)

// Login exchanges credentials for a bearer token via the form-encoded
// token endpoint.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*core.Credential, error) {
	if err := (core.LoginInput{Identifier: identifier, Secret: secret}).Validate(); err != nil {
		return nil, core.Invalid("login", err)
	}

	username := strings.TrimSpace(identifier)
	if c.cfg.StripEmailDomain {
		username = core.LoginName(username)
	}

	var out tokenWire
	err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/admin/login",
		form:   map[string]string{"username": username, "password": secret},
		login:  true,
	}, &out)
	if err != nil {
		return nil, err
	}

	cred, err := out.credential()
	if err != nil {
		return nil, malformed("login", http.StatusOK, err)
	}
	return cred, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.AdminAccount, error) {
	var out []accountWire
	if err := c.do(ctx, call{op: "listAccounts", method: http.MethodGet, path: "/admin/list"}, &out); err != nil {
		return nil, err
	}

	accounts := make([]core.AdminAccount, 0, len(out))
	for _, w := range out {
		account, err := w.account()
		if err != nil {
			return nil, malformed("listAccounts", http.StatusOK, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// accountBody sends the identity as username, and also as email when it
// looks like one, so either backend flavour accepts it.
func accountBody(identity, fullName, secret *string) map[string]string {
	body := make(map[string]string)
	if identity != nil {
		body["username"] = *identity
		if strings.Contains(*identity, "@") {
			body["email"] = *identity
		}
	}
	if fullName != nil && *fullName != "" {
		body["full_name"] = *fullName
	}
	if secret != nil && *secret != "" {
		body["password"] = *secret
	}
	return body
}

func (c *Client) CreateAccount(ctx context.Context, in core.AccountInput) (*core.AdminAccount, error) {
	if strings.TrimSpace(in.Identity) == "" {
		return nil, core.Invalid("createAccount", core.ErrIdentifierRequired)
	}
	if in.Secret == "" {
		return nil, core.Invalid("createAccount", core.ErrSecretRequired)
	}

	var out accountWire
	err := c.do(ctx, call{
		op:       "createAccount",
		method:   http.MethodPost,
		path:     "/admin/create",
		body:     accountBody(&in.Identity, &in.FullName, &in.Secret),
		mutation: true,
	}, &out)
	if err != nil {
		return nil, err
	}

	account, err := out.account()
	if err != nil {
		return nil, malformed("createAccount", http.StatusOK, err)
	}
	return &account, nil
}

func (c *Client) UpdateAccount(ctx context.Context, id string, patch core.AccountPatch) (*core.AdminAccount, error) {
	var out accountWire
	err := c.do(ctx, call{
		op:       "updateAccount",
		method:   http.MethodPut,
		path:     "/admin/:id",
		pathArgs: map[string]string{"id": id},
		body:     accountBody(patch.Identity, patch.FullName, patch.Secret),
		mutation: true,
	}, &out)
	if err != nil {
		return nil, err
	}

	account, err := out.account()
	if err != nil {
		return nil, malformed("updateAccount", http.StatusOK, err)
	}
	return &account, nil
}

// DeleteAccount propagates the backend's refusal to delete the bootstrap
// account as a validation error; nothing is removed optimistically.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:       "deleteAccount",
		method:   http.MethodDelete,
		path:     "/admin/:id",
		pathArgs: map[string]string{"id": id},
		mutation: true,
	}, nil)
}
