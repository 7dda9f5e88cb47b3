package core

// HTTPAdapter exposes the console over a web framework.
type HTTPAdapter interface {
	RegisterRoutes(console *Console) error
}
