package models

// Image is an encoded picture with a caption, ready to be stored as a run
// artifact.
type Image struct {
	PNG     []byte `json:"-"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Caption string `json:"caption"`
}
