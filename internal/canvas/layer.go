package canvas

// Attachment records which canvas owns a layer. Layer types embed it; the
// zero value is unattached.
type Attachment struct {
	owner *Canvas
}

// Owner returns the canvas the layer is attached to, or nil.
func (a *Attachment) Owner() *Canvas { return a.owner }

func (a *Attachment) attachment() *Attachment { return a }

// Layer is anything a Canvas can own. Implementations embed Attachment.
type Layer interface {
	// LayerName is the label shown in the layer control.
	LayerName() string
	// InControl reports whether the layer is listed in the layer control.
	InControl() bool
	// IsOverlay reports whether the layer is a non-exclusive overlay.
	IsOverlay() bool
	// Visible reports whether the layer is shown initially.
	Visible() bool

	attachment() *Attachment
}
