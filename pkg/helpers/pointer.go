package helpers

// ToPointer returns a pointer to a copy of v. Handy for optional settings such as
// the maximum step budget.
func ToPointer[T any](v T) *T {
	return &v
}
