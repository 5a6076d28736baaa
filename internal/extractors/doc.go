// Package extractors provides implementations of the Extractor interface.
// Each extractor turns a stored file of a given media type into ordered
// pages of text: the document extractor parses PDFs locally, the vision
// extractor transcribes images through a multimodal model.
//
// Extractors are registered with the Registry at startup, which selects
// one by declared media type.
package extractors
