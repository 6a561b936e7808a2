package stitch

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"

	"github.com/quiltql/quilt/delegate"

	"github.com/stretchr/testify/assert"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

func formatSchema(schema *ast.Schema) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchema(schema)
	return buf.String()
}

func loadAndFormatSchema(input string) string {
	return formatSchema(gqlparser.MustLoadSchema(&ast.Source{Name: "schema", Input: input}))
}

func isEqualSchemas(t *testing.T, expected string, actual *ast.Schema) {
	t.Helper()
	assert.Equal(
		t,
		loadAndFormatSchema(expected),
		formatSchema(actual),
		fmt.Sprintf("%s not equal to expected %s", formatSchema(actual), expected),
	)
}

func mustLoadSubschemas(inputs ...string) []*delegate.SubschemaConfig {
	var cfgs []*delegate.SubschemaConfig
	for i, input := range inputs {
		cfgs = append(cfgs, &delegate.SubschemaConfig{
			Schema: gqlparser.MustLoadSchema(
				&ast.Source{Name: "schema" + strconv.Itoa(i), Input: input},
			),
		})
	}
	return cfgs
}

func mustStitch(t *testing.T, s *Stitcher) *Result {
	t.Helper()
	res, err := s.Stitch()
	if err != nil {
		panic(err)
	}
	return res
}
