// SPDX-License-Identifier: MPL-2.0

package pymod

import "slices"

type (
	// Classified is the classification outcome for one module name.
	Classified struct {
		Name   ModuleName
		Class  Classification
		Reason Reason
		Origin Origin
		// Found is false when neither the locator nor the sibling search
		// could resolve the name.
		Found bool
	}

	// Partition maps every module of a build to exactly one classification.
	Partition struct {
		entries map[ModuleName]Classified
	}
)

// NewPartition returns an empty partition.
func NewPartition() *Partition {
	return &Partition{entries: make(map[ModuleName]Classified)}
}

// Set records c. A name is classified once; a second Set for the same name
// is ignored and reported as false.
func (p *Partition) Set(c Classified) bool {
	if _, ok := p.entries[c.Name]; ok {
		return false
	}
	p.entries[c.Name] = c
	return true
}

// Get returns the classification for name.
func (p *Partition) Get(name ModuleName) (Classified, bool) {
	c, ok := p.entries[name]
	return c, ok
}

// Len returns the number of classified names.
func (p *Partition) Len() int { return len(p.entries) }

// Names returns the names in class, sorted.
func (p *Partition) Names(class Classification) []ModuleName {
	var out []ModuleName
	for n, c := range p.entries {
		if c.Class == class {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// Members returns the classified entries of class, sorted by name.
func (p *Partition) Members(class Classification) []Classified {
	names := p.Names(class)
	out := make([]Classified, len(names))
	for i, n := range names {
		out[i] = p.entries[n]
	}
	return out
}

// All returns every entry sorted by name.
func (p *Partition) All() []Classified {
	names := make([]ModuleName, 0, len(p.entries))
	for n := range p.entries {
		names = append(names, n)
	}
	slices.Sort(names)
	out := make([]Classified, len(names))
	for i, n := range names {
		out[i] = p.entries[n]
	}
	return out
}

// Counts returns the number of names per classification.
func (p *Partition) Counts() map[Classification]int {
	out := make(map[Classification]int, 4)
	for _, c := range p.entries {
		out[c.Class]++
	}
	return out
}
