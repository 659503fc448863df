package models

// Channel is one image of a multi-channel tile scan
type Channel struct {
	// Path is the location of the channel image on disk
	Path string `yaml:"path"`

	// Marker names what the channel stains, e.g. "DAPI". Fields cropped from
	// the channel are written under a directory of this name.
	Marker string `yaml:"marker"`
}

// FieldLocation is the rotation centre of a field of view in physical units
type FieldLocation struct {
	// Number is the sequential field number
	Number int

	// X and Y are measured from the top-left of the source image
	X, Y float64
}

// Assignment lists the fields dealt to one researcher
type Assignment struct {
	Researcher string   `yaml:"researcher"`
	Fields     []string `yaml:"fields"`
}

// Relabel is a field drawn to be labeled a second time
type Relabel struct {
	// Researcher labeled the field first
	Researcher string `yaml:"researcher"`
	Field      string `yaml:"field"`
}
