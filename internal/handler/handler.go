package handler

// Handler holds the top-level routes that belong to no domain group.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}
