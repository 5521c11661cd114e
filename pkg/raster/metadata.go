package raster

import "strings"

// MetadataElement is a node of a product's metadata tree.
type MetadataElement struct {
	Name       string             `yaml:"name"`
	Attributes map[string]string  `yaml:"attributes,omitempty"`
	Elements   []*MetadataElement `yaml:"elements,omitempty"`
}

// NewMetadataElement creates an empty element.
func NewMetadataElement(name string) *MetadataElement {
	return &MetadataElement{Name: name, Attributes: map[string]string{}}
}

// Element returns the direct child with the given name, or nil.
func (e *MetadataElement) Element(name string) *MetadataElement {
	if e == nil {
		return nil
	}
	for _, child := range e.Elements {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// AddElement appends a child and returns it.
func (e *MetadataElement) AddElement(child *MetadataElement) *MetadataElement {
	e.Elements = append(e.Elements, child)
	return child
}

// Attribute returns the trimmed attribute value.
func (e *MetadataElement) Attribute(name string) (string, bool) {
	if e == nil || e.Attributes == nil {
		return "", false
	}
	v, ok := e.Attributes[name]
	return strings.TrimSpace(v), ok
}

// SetAttribute sets an attribute, creating the map when needed.
func (e *MetadataElement) SetAttribute(name, value string) {
	if e.Attributes == nil {
		e.Attributes = map[string]string{}
	}
	e.Attributes[name] = value
}

// Lookup resolves a slash separated path such as "MPH/SOFTWARE_VER" where the
// last segment is an attribute name.
func (e *MetadataElement) Lookup(path string) (string, bool) {
	parts := strings.Split(path, "/")
	node := e
	for _, p := range parts[:len(parts)-1] {
		node = node.Element(p)
		if node == nil {
			return "", false
		}
	}
	return node.Attribute(parts[len(parts)-1])
}

// Clone returns a deep copy.
func (e *MetadataElement) Clone() *MetadataElement {
	if e == nil {
		return nil
	}
	c := &MetadataElement{Name: e.Name, Attributes: make(map[string]string, len(e.Attributes))}
	for k, v := range e.Attributes {
		c.Attributes[k] = v
	}
	for _, child := range e.Elements {
		c.Elements = append(c.Elements, child.Clone())
	}
	return c
}
