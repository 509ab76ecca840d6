// CLAUDE:SUMMARY Format identifiers and extension/MIME detection tables for the normaliser.
package docpipe

// Format identifies a document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatODT  Format = "odt"
	FormatDoc  Format = "doc"
	FormatRTF  Format = "rtf"
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatHTML Format = "html"
)

var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDocx,
	".odt":      FormatODT,
	".doc":      FormatDoc,
	".rtf":      FormatRTF,
	".txt":      FormatTXT,
	".text":     FormatTXT,
	".md":       FormatMD,
	".markdown": FormatMD,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

var mimeFormats = map[string]Format{
	"application/pdf":    FormatPDF,
	"application/msword": FormatDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDocx,
	"application/vnd.oasis.opendocument.text":                                 FormatODT,
	"application/rtf":                                                         FormatRTF,
	"text/rtf":                                                                FormatRTF,
	"text/plain":                                                              FormatTXT,
	"text/markdown":                                                           FormatMD,
	"text/html":                                                               FormatHTML,
}

// SupportedFormats returns all supported formats.
func SupportedFormats() []string {
	return []string{"pdf", "docx", "odt", "doc", "rtf", "txt", "md", "html"}
}
