// Package file keeps user settings on disk under ~/.contextkb: the TOML
// config file read at startup and the prompt files the vision extractor
// sends with each image.
package file
