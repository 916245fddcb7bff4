// xslt.go: minimal XSLT 1.0 engine for the migration stylesheet
//
// The migration pipeline transforms the installed manifest through an
// installed stylesheet into a textual migration program. The engine
// implements exactly the subset the shipped stylesheet uses: text output,
// xsl:template with element or "/" matches, xsl:apply-templates,
// xsl:for-each, xsl:value-of and xsl:text, with relative child/attribute
// select paths. Anything outside that subset is a transform error, not a
// silent skip.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/beevik/etree"
)

const xslNamespace = "http://www.w3.org/1999/XSL/Transform"

// Stylesheet is a parsed migration stylesheet.
type Stylesheet struct {
	templates []*xslTemplate
}

type xslTemplate struct {
	match string
	body  *etree.Element
}

// ParseStylesheetFile loads and validates a stylesheet from path.
func ParseStylesheetFile(path string) (*Stylesheet, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationTransform, "cannot read stylesheet "+path)
	}
	return parseStylesheet(doc)
}

// ParseStylesheet parses a stylesheet from XML text. Used by tests.
func ParseStylesheet(text string) (*Stylesheet, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationTransform, "cannot parse stylesheet")
	}
	return parseStylesheet(doc)
}

func parseStylesheet(doc *etree.Document) (*Stylesheet, error) {
	root := doc.Root()
	if root == nil || (root.Tag != "stylesheet" && root.Tag != "transform") {
		return nil, errors.New(ErrCodeMigrationTransform, "not a stylesheet document")
	}

	sheet := &Stylesheet{}
	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "output":
			if m := el.SelectAttrValue("method", "text"); m != "text" {
				return nil, errors.New(ErrCodeMigrationTransform,
					"unsupported output method "+m)
			}
		case "template":
			match := el.SelectAttrValue("match", "")
			if match == "" {
				return nil, errors.New(ErrCodeMigrationTransform, "template without match")
			}
			sheet.templates = append(sheet.templates, &xslTemplate{match: match, body: el})
		default:
			return nil, errors.New(ErrCodeMigrationTransform,
				"unsupported top-level instruction "+el.Tag)
		}
	}
	if sheet.templateFor("/") == nil {
		return nil, errors.New(ErrCodeMigrationTransform, "stylesheet has no root template")
	}
	return sheet, nil
}

func (st *Stylesheet) templateFor(match string) *xslTemplate {
	for _, t := range st.templates {
		if t.match == match {
			return t
		}
	}
	return nil
}

// Apply transforms doc and returns the text output. The root template runs
// with the document node as context, so its selects start above the root
// element ("migration-map/pref", not "pref"), matching a conforming
// processor.
func (st *Stylesheet) Apply(doc *etree.Document) (string, error) {
	if doc.Root() == nil {
		return "", errors.New(ErrCodeMigrationTransform, "source document has no root element")
	}
	var out strings.Builder
	if err := st.execute(st.templateFor("/").body, &doc.Element, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// execute runs the children of an instruction element against context.
func (st *Stylesheet) execute(parent *etree.Element, context *etree.Element, out *strings.Builder) error {
	for _, child := range parent.Child {
		switch node := child.(type) {
		case *etree.CharData:
			// Whitespace-only text between instructions is stripped, as a
			// real processor does for stylesheet text nodes.
			if strings.TrimSpace(node.Data) != "" {
				out.WriteString(node.Data)
			}
		case *etree.Element:
			if err := st.executeInstruction(node, context, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *Stylesheet) executeInstruction(el *etree.Element, context *etree.Element, out *strings.Builder) error {
	if el.Space == "" {
		// Literal result element. Text output discards the markup and
		// processes the content.
		return st.execute(el, context, out)
	}
	switch el.Tag {
	case "text":
		out.WriteString(el.Text())
		return nil

	case "value-of":
		sel := el.SelectAttrValue("select", "")
		out.WriteString(selectText(context, sel))
		return nil

	case "for-each":
		sel := el.SelectAttrValue("select", "")
		for _, node := range selectElements(context, sel) {
			if err := st.execute(el, node, out); err != nil {
				return err
			}
		}
		return nil

	case "apply-templates":
		sel := el.SelectAttrValue("select", "")
		var nodes []*etree.Element
		if sel == "" {
			nodes = context.ChildElements()
		} else {
			nodes = selectElements(context, sel)
		}
		for _, node := range nodes {
			t := st.templateFor(node.Tag)
			if t == nil {
				continue // built-in rule: unmatched elements produce nothing
			}
			if err := st.execute(t.body, node, out); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.New(ErrCodeMigrationTransform,
			fmt.Sprintf("unsupported instruction %s", el.Tag))
	}
}

// selectElements resolves a relative child path ("pref", "map/pref", ".")
// against context.
func selectElements(context *etree.Element, sel string) []*etree.Element {
	if sel == "" || sel == "." {
		return []*etree.Element{context}
	}
	nodes := []*etree.Element{context}
	for _, step := range strings.Split(sel, "/") {
		var next []*etree.Element
		for _, n := range nodes {
			next = append(next, n.SelectElements(step)...)
		}
		nodes = next
	}
	return nodes
}

// selectText resolves a value-of select: ".", "@attr", "child", or a child
// path ending in "@attr" or an element whose text is taken.
func selectText(context *etree.Element, sel string) string {
	if sel == "" || sel == "." {
		return context.Text()
	}

	attr := ""
	if i := strings.LastIndex(sel, "@"); i >= 0 {
		attr = sel[i+1:]
		sel = strings.TrimSuffix(sel[:i], "/")
	}

	nodes := selectElements(context, sel)
	if len(nodes) == 0 {
		return ""
	}
	if attr != "" {
		return nodes[0].SelectAttrValue(attr, "")
	}
	return nodes[0].Text()
}
