package defaults

import (
	"bytes"
	"testing"

	"github.com/martinsuchenak/labeld/internal/model"
)

func TestPrintMappings(t *testing.T) {
	var buf bytes.Buffer
	printMappings(&buf, []*model.DefaultMapping{
		{Classification: "switch", TemplateID: "t1", Active: true},
		{Classification: "camera", TemplateID: "t2"},
	})
	want := "CLASSIFICATION\tTEMPLATE\tACTIVE\nswitch\tt1\ttrue\ncamera\tt2\tfalse\n"
	if buf.String() != want {
		t.Errorf("printMappings() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	printMappings(&buf, nil)
	if buf.String() != "No defaults configured\n" {
		t.Errorf("Unexpected empty output: %q", buf.String())
	}
}
