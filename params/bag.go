package params

import "strings"

type Entry struct {
	Name  string
	Value Value
}

// Bag is an ordered set of named values. Names are unique; setting an existing
// name replaces its value without moving it.
type Bag struct {
	entries []Entry
	index   map[string]int
}

func NewBag(entries ...Entry) *Bag {
	bag := &Bag{}
	for _, entry := range entries {
		bag.Set(entry.Name, entry.Value)
	}
	return bag
}

func (b *Bag) Set(name string, value Value) *Bag {
	name = strings.TrimSpace(name)
	if name == "" {
		return b
	}
	if b.index == nil {
		b.index = map[string]int{}
	}
	if pos, ok := b.index[name]; ok {
		b.entries[pos].Value = value
		return b
	}
	b.index[name] = len(b.entries)
	b.entries = append(b.entries, Entry{Name: name, Value: value})
	return b
}

func (b *Bag) Get(name string) (Value, bool) {
	if b == nil || b.index == nil {
		return Value{}, false
	}
	pos, ok := b.index[strings.TrimSpace(name)]
	if !ok {
		return Value{}, false
	}
	return b.entries[pos].Value, true
}

func (b *Bag) Delete(name string) {
	if b == nil || b.index == nil {
		return
	}
	name = strings.TrimSpace(name)
	pos, ok := b.index[name]
	if !ok {
		return
	}
	b.entries = append(b.entries[:pos], b.entries[pos+1:]...)
	delete(b.index, name)
	for i := pos; i < len(b.entries); i++ {
		b.index[b.entries[i].Name] = i
	}
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Each visits entries in declared order until fn returns false.
func (b *Bag) Each(fn func(name string, value Value) bool) {
	if b == nil || fn == nil {
		return
	}
	for _, entry := range b.entries {
		if !fn(entry.Name, entry.Value) {
			return
		}
	}
}

func (b *Bag) Entries() []Entry {
	if b == nil {
		return nil
	}
	return append([]Entry(nil), b.entries...)
}

func (b *Bag) Clone() *Bag {
	return NewBag(b.Entries()...)
}
