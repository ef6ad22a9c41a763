package domain

// Association models exposed by the daemon.
const (
	ModelProperties = "properties"
	ModelTextures   = "textures"
)

// LayerStatus describes one layer and the state of its associations.
type LayerStatus struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Format   string  `json:"format"`
	Dims     [3]int  `json:"dims"`
	Opacity  float64 `json:"opacity"`
	Visible  bool    `json:"visible"`
	Main     bool    `json:"main,omitempty"`

	// Associations maps a model name to the entry state: "ready",
	// "pending" or "missing".
	Associations map[string]string `json:"associations"`
}

// LayersResponse is returned by GET /layers.
type LayersResponse struct {
	Generation int64             `json:"generation"`
	Layers     []LayerStatus     `json:"layers"`
	Active     map[string]string `json:"active"`
	World      [16]float64       `json:"world"`
}

// SelectionResponse is returned by POST and DELETE /select.
type SelectionResponse struct {
	Active map[string]string `json:"active"`
}

// DrawCall is one texture draw of a painted frame.
type DrawCall struct {
	Layer    string  `json:"layer"`
	Texture  uint64  `json:"texture"`
	Opacity  float64 `json:"opacity"`
	Editable bool    `json:"editable,omitempty"`
}

// FrameResponse is returned by GET /frame.
type FrameResponse struct {
	Calls []DrawCall `json:"calls"`
}
