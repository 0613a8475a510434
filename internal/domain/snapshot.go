package domain

// VectorSnapshot is the persisted form of the vector index: row i of Vectors
// belongs to Items[i]. Every row has Dim components.
type VectorSnapshot struct {
	Dim     int
	Vectors [][]float32
	Items   []Item
}

// Len returns the number of rows.
func (s VectorSnapshot) Len() int { return len(s.Items) }
