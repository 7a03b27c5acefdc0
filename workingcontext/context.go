// Package workingcontext implements the agent's small, directly editable
// memory sections (persona, human facts, and any others the agent
// creates), rendered into the system prompt on every turn.
package workingcontext

import (
	"fmt"
	"strings"
	"sync"
)

const (
	defaultPersona = "I am a helpful assistant with persistent memory across conversations."
	defaultHuman   = "No information about the user yet."

	renderHeader  = "### Core Memory"
	renderTrailer = "### End Core Memory"
)

// Context holds an insertion-ordered set of named sections.
type Context struct {
	mu       sync.Mutex
	order    []string
	sections map[string]string
}

// New creates a Context seeded with the default persona and human sections.
func New() *Context {
	c := &Context{sections: make(map[string]string)}
	c.create("persona", defaultPersona)
	c.create("human", defaultHuman)
	return c
}

// Create adds a new section. Returns an error if the section already exists.
func (c *Context) Create(section, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sections[section]; ok {
		return fmt.Errorf("section %q already exists", section)
	}
	c.create(section, content)
	return nil
}

func (c *Context) create(section, content string) {
	c.sections[section] = content
	c.order = append(c.order, section)
}

// Append concatenates content onto an existing section with a newline
// separator. Returns an error if the section does not exist.
func (c *Context) Append(section, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.sections[section]
	if !ok {
		return fmt.Errorf("section %q does not exist", section)
	}
	c.sections[section] = existing + "\n" + content
	return nil
}

// Replace substitutes the first occurrence of old with new within section.
// Returns an error if the section does not exist or old is not found.
func (c *Context) Replace(section, old, new string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.sections[section]
	if !ok {
		return fmt.Errorf("section %q does not exist", section)
	}
	if !strings.Contains(existing, old) {
		return fmt.Errorf("content %q not found in section %q", old, section)
	}
	c.sections[section] = strings.Replace(existing, old, new, 1)
	return nil
}

// Delete removes a section entirely. Returns an error if it does not exist.
func (c *Context) Delete(section string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sections[section]; !ok {
		return fmt.Errorf("section %q does not exist", section)
	}
	delete(c.sections, section)
	for i, s := range c.order {
		if s == section {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the content of a section and whether it exists.
func (c *Context) Get(section string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.sections[section]
	return v, ok
}

// All returns a snapshot of all sections keyed by name. The map carries no
// section order; Render is the ordered view.
func (c *Context) All() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.sections))
	for k, v := range c.sections {
		out[k] = v
	}
	return out
}

// Render produces the deterministic textual form of the working context:
// a header line, one uppercased-label block per section in insertion
// order, and a trailer line.
func (c *Context) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString(renderHeader)
	b.WriteString("\n")
	for _, section := range c.order {
		b.WriteString("[")
		b.WriteString(strings.ToUpper(section))
		b.WriteString("]\n")
		b.WriteString(c.sections[section])
		b.WriteString("\n")
	}
	b.WriteString(renderTrailer)
	return b.String()
}
