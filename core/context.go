package core

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// A Context carries the per-invocation execution state: the dynamic
// binding stack, the recursion guard, and a cache of rule results.
// A Manager is read-only during extraction; everything mutable lives
// here.
type Context struct {
	bindings *bindingFrame
	active   map[visit]bool
	results  *lru.Cache[resultKey, []*Match]
}

type bindingFrame struct {
	subs Substitutions
	next *bindingFrame
}

type visit struct {
	name  string
	start int
}

// Substitutions maps names to replacement names, as written in a
// binding qualifier [a=b, ...].
type Substitutions map[string]string

func NewContext() *Context {
	return &Context{active: map[visit]bool{}}
}

// Push makes subs the innermost binding frame and returns the
// matching pop. Callers defer the pop so the frame is removed on all
// exit paths.
func (c *Context) Push(subs Substitutions) func() {
	if len(subs) == 0 {
		return func() {}
	}
	c.bindings = &bindingFrame{subs: subs, next: c.bindings}
	return func() { c.bindings = c.bindings.next }
}

// Resolve applies the binding stack to a reference. The whole name is
// consulted first, then its leading dotted component; the innermost
// frame wins. Rebinding a name to its current value is a no-op, so
// bindings are idempotent.
func (c *Context) Resolve(name string) string {
	for f := c.bindings; f != nil; f = f.next {
		if r, have := f.subs[name]; have {
			return r
		}
		if i := strings.IndexByte(name, '.'); i > 0 {
			if r, have := f.subs[name[:i]]; have {
				return r + name[i:]
			}
		}
	}
	return name
}

// enter registers an extractor invocation at a token position,
// failing if the same pair is already on the call stack.
func (c *Context) enter(name string, start int) (func(), error) {
	v := visit{name, start}
	if c.active[v] {
		return nil, &RecursionError{Name: name, Start: start}
	}
	c.active[v] = true
	return func() { delete(c.active, v) }, nil
}
