package format

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/quiltql/quilt/common"

	"github.com/vektah/gqlparser/v2/ast"
)

var spaceRe = regexp.MustCompile(`\s+`)

// BufferedFormatter renders a selection set into an executable operation
// string, collecting the variable definitions the selection references.
type BufferedFormatter struct {
	indent        string
	newLine       string
	operationType ast.Operation
	operationName string
	schema        *ast.Schema
	debug         bool
}

// NewBufferedFormatter returns a formatter producing pretty multi-line
// output.
func NewBufferedFormatter() *BufferedFormatter {
	return &BufferedFormatter{
		indent:        "\t",
		newLine:       "\n",
		operationType: ast.Query,
	}
}

// NewDebugBufferedFormatter returns a formatter producing single-line
// output, suitable for logs and wire queries.
func NewDebugBufferedFormatter() *BufferedFormatter {
	bf := NewBufferedFormatter()
	bf.debug = true
	return bf
}

func (bf *BufferedFormatter) WithIndent(indent string) *BufferedFormatter {
	bf.indent = indent
	return bf
}

func (bf *BufferedFormatter) WithNewLine(newLine string) *BufferedFormatter {
	bf.newLine = newLine
	return bf
}

func (bf *BufferedFormatter) WithOperationType(op ast.Operation) *BufferedFormatter {
	bf.operationType = op
	return bf
}

func (bf *BufferedFormatter) WithOperationName(name string) *BufferedFormatter {
	bf.operationName = name
	return bf
}

// WithSchema lets the formatter resolve variable types nested inside list
// and object argument values.
func (bf *BufferedFormatter) WithSchema(schema *ast.Schema) *BufferedFormatter {
	bf.schema = schema
	return bf
}

func (bf *BufferedFormatter) Copy() *BufferedFormatter {
	cpy := *bf
	return &cpy
}

// FormatSelectionSet renders s as a complete operation. The operation
// keyword is emitted only when required: a non-query operation, an
// operation name or referenced variables.
func (bf *BufferedFormatter) FormatSelectionSet(s ast.SelectionSet) string {
	buf := bytes.NewBufferString("")
	defer buf.Reset()

	f := &lineFormatter{
		indent:  bf.indent,
		newLine: bf.newLine,
		writer:  buf,
	}
	f.formatSelectionSet(s)

	body := buf.String()
	if bf.debug {
		if bf.indent != "" {
			body = strings.ReplaceAll(body, bf.indent, " ")
		}
		if bf.newLine != "" {
			body = strings.ReplaceAll(body, bf.newLine, " ")
		}
		body = strings.TrimSpace(spaceRe.ReplaceAllString(body, " "))
	}

	return bf.operationPrefix(s) + body
}

func (bf *BufferedFormatter) operationPrefix(s ast.SelectionSet) string {
	keyword := string(bf.operationType)
	if keyword == "" {
		keyword = string(ast.Query)
	}

	args := bf.walkArgumentList(s)

	var tuples []string
	for argName, argType := range args {
		tuples = append(tuples, fmt.Sprintf("$%s: %s", argName, argType))
	}
	// persistent order
	sort.Strings(tuples)

	switch {
	case len(tuples) > 0 && bf.operationName != "":
		return fmt.Sprintf("%s %s(%s) ", keyword, bf.operationName, strings.Join(tuples, ", "))
	case len(tuples) > 0:
		return fmt.Sprintf("%s (%s) ", keyword, strings.Join(tuples, ", "))
	case bf.operationName != "":
		return fmt.Sprintf("%s %s ", keyword, bf.operationName)
	case keyword != string(ast.Query):
		return keyword + " "
	default:
		return ""
	}
}

// walkArgumentList maps every variable referenced in s to its type string.
func (bf *BufferedFormatter) walkArgumentList(s ast.SelectionSet) map[string]string {
	res := make(map[string]string)
	for _, f := range common.SelectionSetToFields(s, nil) {
		for _, a := range f.Arguments {
			if a.Value == nil || f.Definition == nil || f.Definition.Arguments == nil {
				continue
			}
			ad := f.Definition.Arguments.ForName(a.Name)
			if ad == nil {
				continue
			}
			bf.walkValue(a.Value, ad.Type, res)
		}
		if f.SelectionSet != nil {
			for k, v := range bf.walkArgumentList(f.SelectionSet) {
				res[k] = v
			}
		}
	}

	return res
}

// walkValue descends into list and object values looking for variables.
// expectedType tracks the type the current value must satisfy.
func (bf *BufferedFormatter) walkValue(v *ast.Value, expectedType *ast.Type, res map[string]string) {
	switch v.Kind {
	case ast.Variable:
		switch {
		case v.ExpectedType != nil:
			res[v.Raw] = v.ExpectedType.String()
		case expectedType != nil:
			res[v.Raw] = expectedType.String()
		}
	case ast.ListValue:
		var elem *ast.Type
		if expectedType != nil {
			elem = expectedType.Elem
		}
		for _, child := range v.Children {
			bf.walkValue(child.Value, elem, res)
		}
	case ast.ObjectValue:
		var def *ast.Definition
		if bf.schema != nil && expectedType != nil {
			def = bf.schema.Types[expectedType.Name()]
		}
		for _, child := range v.Children {
			var fieldType *ast.Type
			if def != nil {
				if fd := def.Fields.ForName(child.Name); fd != nil {
					fieldType = fd.Type
				}
			}
			bf.walkValue(child.Value, fieldType, res)
		}
	}
}

// lineFormatter writes the raw selection set body.
type lineFormatter struct {
	writer *bytes.Buffer

	indent     string
	newLine    string
	indentSize int

	padNext  bool
	lineHead bool
}

func (f *lineFormatter) write(s string) {
	f.writer.WriteString(s)
}

func (f *lineFormatter) writeIndent() {
	if f.lineHead {
		f.write(strings.Repeat(f.indent, f.indentSize))
	}
	f.lineHead = false
	f.padNext = false
}

func (f *lineFormatter) writeNewline() {
	f.write(f.newLine)
	f.lineHead = true
	f.padNext = false
}

func (f *lineFormatter) writeWord(word string) {
	if f.lineHead {
		f.writeIndent()
	}
	if f.padNext {
		f.write(" ")
	}
	f.write(strings.TrimSpace(word))
	f.padNext = true
}

func (f *lineFormatter) writeString(s string) {
	if f.lineHead {
		f.writeIndent()
	}
	if f.padNext {
		f.write(" ")
	}
	f.write(s)
	f.padNext = false
}

func (f *lineFormatter) formatSelectionSet(sets ast.SelectionSet) {
	if len(sets) == 0 {
		return
	}

	f.writeString("{")
	f.writeNewline()
	f.indentSize++

	for _, sel := range sets {
		f.formatSelection(sel)
	}

	f.indentSize--
	f.writeString("}")
}

func (f *lineFormatter) formatSelection(selection ast.Selection) {
	switch v := selection.(type) {
	case *ast.Field:
		f.formatField(v)
	case *ast.FragmentSpread:
		f.writeWord("...")
		f.writeWord(v.Name)
		f.formatDirectiveList(v.Directives)
		if v.Definition != nil {
			f.formatSelectionSet(v.Definition.SelectionSet)
		}
	case *ast.InlineFragment:
		f.writeWord("...")
		if v.TypeCondition != "" {
			f.writeWord("on")
			f.writeWord(v.TypeCondition)
		}
		f.formatDirectiveList(v.Directives)
		f.formatSelectionSet(v.SelectionSet)
	default:
		panic(fmt.Errorf("unknown Selection type: %T", selection))
	}

	f.writeNewline()
}

func (f *lineFormatter) formatField(field *ast.Field) {
	if field.Alias != "" && field.Alias != field.Name {
		f.writeWord(field.Alias)
		f.padNext = false
		f.writeString(":")
		f.padNext = true
	}
	f.writeWord(field.Name)

	if len(field.Arguments) != 0 {
		f.padNext = false
		f.formatArgumentList(field.Arguments)
		f.padNext = true
	}

	f.formatDirectiveList(field.Directives)

	f.formatSelectionSet(field.SelectionSet)
}

func (f *lineFormatter) formatArgumentList(lists ast.ArgumentList) {
	f.padNext = false
	f.writeString("(")
	for idx, arg := range lists {
		f.writeWord(arg.Name)
		f.padNext = false
		f.writeString(":")
		f.padNext = true
		f.writeString(arg.Value.String())

		if idx != len(lists)-1 {
			f.padNext = false
			f.writeWord(",")
		}
	}
	f.writeString(")")
	f.padNext = true
}

func (f *lineFormatter) formatDirectiveList(lists ast.DirectiveList) {
	for _, dir := range lists {
		f.writeString("@")
		f.writeWord(dir.Name)
		if len(dir.Arguments) != 0 {
			f.padNext = false
			f.formatArgumentList(dir.Arguments)
		}
	}
}
