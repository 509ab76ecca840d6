package docpipe

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Destinations whose content is never body text.
var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "headerl": true, "headerr": true, "headerf": true,
	"footer": true, "footerl": true, "footerr": true, "footerf": true,
	"listtable": true, "listoverridetable": true, "rsidtbl": true,
	"generator": true, "xmlnstbl": true, "themedata": true,
	"colorschememapping": true, "datastore": true, "latentstyles": true,
	"object": true, "fldinst": true, "filetbl": true, "revtbl": true,
}

var rtfWordText = map[string]string{
	"par": "\n", "line": "\n", "sect": "\n", "page": "\n", "row": "\n",
	"tab": "\t", "cell": " ",
	"emdash": "—", "endash": "–", "bullet": "•",
	"lquote": "‘", "rquote": "’", "ldblquote": "“", "rdblquote": "”",
}

type rtfGroup struct {
	skip bool
	uc   int
}

// extractRTF strips RTF control words and groups, decoding \'hh escapes as
// Windows-1252 and \uN as Unicode.
func extractRTF(data []byte) (extraction, error) {
	data = bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(data, []byte(`{\rtf`)) {
		return extraction{}, fmt.Errorf("not an RTF document")
	}

	dec := charmap.Windows1252.NewDecoder()
	var out strings.Builder
	stack := []rtfGroup{{uc: 1}}
	cur := func() *rtfGroup { return &stack[len(stack)-1] }
	pendingSkip := 0

	emit := func(s string) {
		if pendingSkip > 0 {
			pendingSkip--
			return
		}
		if !cur().skip {
			out.WriteString(s)
		}
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch c {
		case '{':
			stack = append(stack, *cur())
			pendingSkip = 0
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			pendingSkip = 0
		case '\r', '\n':
		case '\\':
			if i+1 >= len(data) {
				break
			}
			n := data[i+1]
			switch {
			case n == '\\' || n == '{' || n == '}':
				emit(string(n))
				i++
			case n == '\'':
				if i+3 < len(data) {
					if v, err := strconv.ParseUint(string(data[i+2:i+4]), 16, 8); err == nil {
						if b, err := dec.Bytes([]byte{byte(v)}); err == nil {
							emit(string(b))
						}
					}
				}
				i += 3
			case n == '*':
				cur().skip = true
				i++
			case n == '~':
				emit(" ")
				i++
			case n == '_':
				emit("-")
				i++
			case n == '-':
				i++
			case n == '\n' || n == '\r':
				emit("\n")
				i++
			case isASCIILetter(n):
				j := i + 1
				for j < len(data) && isASCIILetter(data[j]) {
					j++
				}
				word := string(data[i+1 : j])
				k := j
				if k < len(data) && data[k] == '-' {
					k++
				}
				for k < len(data) && data[k] >= '0' && data[k] <= '9' {
					k++
				}
				param, hasParam := 0, k > j
				if hasParam {
					param, _ = strconv.Atoi(string(data[j:k]))
				}
				if k < len(data) && data[k] == ' ' {
					k++
				}
				i = k - 1

				switch {
				case rtfSkipDestinations[word]:
					cur().skip = true
				case word == "uc" && hasParam:
					cur().uc = param
				case word == "u" && hasParam:
					if param < 0 {
						param += 65536
					}
					if !cur().skip {
						out.WriteRune(rune(param))
					}
					pendingSkip = cur().uc
				default:
					if s, ok := rtfWordText[word]; ok {
						emit(s)
					}
				}
			default:
				i++
			}
		default:
			emit(string(c))
		}
	}

	return extraction{text: normalizeText(out.String())}, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
