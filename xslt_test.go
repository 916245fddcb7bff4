// xslt_test.go: stylesheet engine behavior
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

const testStylesheet = `<?xml version="1.0"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:output method="text"/>
  <xsl:template match="/">
    <xsl:text>migration 1&#10;</xsl:text>
    <xsl:for-each select="migration-map/pref">
      <xsl:text>set </xsl:text>
      <xsl:value-of select="target/@schema"/>
      <xsl:text> </xsl:text>
      <xsl:value-of select="target/@key"/>
      <xsl:text> </xsl:text>
      <xsl:value-of select="target/@type"/>
      <xsl:text> </xsl:text>
      <xsl:value-of select="legacy/@path"/>
      <xsl:text>&#10;</xsl:text>
    </xsl:for-each>
    <xsl:for-each select="migration-map/marker">
      <xsl:text>marker </xsl:text>
      <xsl:value-of select="@schema"/>
      <xsl:text> </xsl:text>
      <xsl:value-of select="@key"/>
      <xsl:text>&#10;</xsl:text>
    </xsl:for-each>
  </xsl:template>
</xsl:stylesheet>`

const testManifest = `<?xml version="1.0"?>
<migration-map>
  <pref>
    <legacy path="/apps/gnucash/general/save_window_geometry"/>
    <target schema="general" key="save-window-geometry" type="bool"/>
  </pref>
  <pref>
    <legacy path="/apps/gnucash/general/autosave_interval_minutes"/>
    <target schema="general" key="autosave-interval-minutes" type="int"/>
  </pref>
  <marker schema="org.gnucash" key="migration-done"/>
</migration-map>`

func TestStylesheetTransformsManifest(t *testing.T) {
	sheet, err := ParseStylesheet(testStylesheet)
	if err != nil {
		t.Fatalf("ParseStylesheet: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(testManifest); err != nil {
		t.Fatal(err)
	}

	out, err := sheet.Apply(doc)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []string{
		"migration 1",
		"set general save-window-geometry bool /apps/gnucash/general/save_window_geometry",
		"set general autosave-interval-minutes int /apps/gnucash/general/autosave_interval_minutes",
		"marker org.gnucash migration-done",
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != len(want) {
		t.Fatalf("transform produced %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestParseStylesheetRejectsBadSheets(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not a stylesheet", `<foo/>`},
		{"non-text output", `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
			<xsl:output method="xml"/><xsl:template match="/"/></xsl:stylesheet>`},
		{"no root template", `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
			<xsl:output method="text"/><xsl:template match="pref"/></xsl:stylesheet>`},
		{"template without match", `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
			<xsl:template/></xsl:stylesheet>`},
	}
	for _, tc := range tests {
		if _, err := ParseStylesheet(tc.text); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestApplyTemplatesDispatch(t *testing.T) {
	sheet, err := ParseStylesheet(`<?xml version="1.0"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:output method="text"/>
  <xsl:template match="/">
    <xsl:apply-templates select="list/item"/>
  </xsl:template>
  <xsl:template match="item">
    <xsl:value-of select="@name"/>
    <xsl:text>;</xsl:text>
  </xsl:template>
</xsl:stylesheet>`)
	if err != nil {
		t.Fatalf("ParseStylesheet: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(`<list><item name="a"/><other/><item name="b"/></list>`); err != nil {
		t.Fatal(err)
	}

	out, err := sheet.Apply(doc)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != "a;b;" {
		t.Errorf("apply-templates output = %q, want a;b; (unmatched elements silent)", out)
	}
}

func TestRootTemplateRunsAtDocumentNode(t *testing.T) {
	// The root template's context is the document node, so a select must
	// step through the root element; a bare child name matches nothing.
	const sheetFmt = `<?xml version="1.0"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:output method="text"/>
  <xsl:template match="/">
    <xsl:for-each select="%s">
      <xsl:value-of select="@name"/>
    </xsl:for-each>
  </xsl:template>
</xsl:stylesheet>`

	doc := etree.NewDocument()
	if err := doc.ReadFromString(`<list><item name="a"/></list>`); err != nil {
		t.Fatal(err)
	}

	bare, err := ParseStylesheet(fmt.Sprintf(sheetFmt, "item"))
	if err != nil {
		t.Fatal(err)
	}
	if out, err := bare.Apply(doc); err != nil || out != "" {
		t.Errorf("bare child select from / = %q err=%v, want empty", out, err)
	}

	qualified, err := ParseStylesheet(fmt.Sprintf(sheetFmt, "list/item"))
	if err != nil {
		t.Fatal(err)
	}
	if out, err := qualified.Apply(doc); err != nil || out != "a" {
		t.Errorf("qualified select from / = %q err=%v, want a", out, err)
	}
}

func TestUnsupportedInstructionIsAnError(t *testing.T) {
	sheet, err := ParseStylesheet(`<?xml version="1.0"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:output method="text"/>
  <xsl:template match="/">
    <xsl:copy-of select="."/>
  </xsl:template>
</xsl:stylesheet>`)
	if err != nil {
		t.Fatalf("ParseStylesheet: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(`<root/>`); err != nil {
		t.Fatal(err)
	}
	if _, err := sheet.Apply(doc); err == nil {
		t.Error("instructions outside the supported subset must fail loudly")
	}
}
