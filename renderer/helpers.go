// Package renderer formats backtests and attributions as markdown documents.
package renderer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/rebalance"
	md "github.com/nao1215/markdown"
)

// ConditionalBlock let you fully write a block and decide at the end to print it or not.
// If the block function returns true, the content is printed to w, otherwise it is discarded.
func ConditionalBlock(w io.Writer, block func(io.Writer) bool) {
	bw := &bytes.Buffer{}
	if block(bw) {
		io.Copy(w, bw)
	}
}

// document joins sections with blank lines, skipping the empty ones.
func document(sections ...func(io.Writer) bool) string {
	var b strings.Builder
	for _, s := range sections {
		ConditionalBlock(&b, func(w io.Writer) bool {
			if b.Len() > 0 {
				io.WriteString(w, "\n")
			}
			return s(w)
		})
	}
	return b.String()
}

// section writes doc to w when fill returns true.
func section(w io.Writer, fill func(doc *md.Markdown) bool) bool {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	if !fill(doc) {
		return false
	}
	if err := doc.Build(); err != nil {
		fmt.Fprintf(w, "error rendering section: %v\n", err)
		return true
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteString("\n")
	}
	w.Write(buf.Bytes())
	return true
}

// writeTable writes t with its header and cells as given: no wrapping, no
// upper-cased header.
func writeTable(doc *md.Markdown, t md.TableSet) {
	doc.CustomTable(t, md.TableOptions{})
}

func weight(x float64) string { return rebalance.Ratio(x).String() }
func effect(x float64) string { return rebalance.Ratio(x).SignedString() }

func amount(x float64, currency string) string { return rebalance.M(x, currency).String() }
func signedAmount(x float64, currency string) string {
	return rebalance.M(x, currency).SignedString()
}
