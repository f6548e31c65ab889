package model

import (
	"context"
	"fmt"

	"github.com/syssam/loom/collection"
)

// loadRelations runs the eager loader over parents for the given dot
// paths. Paths are grouped by head segment; each head issues exactly one
// batched query, then the tail paths recurse over the loaded rows. With
// N parents and K distinct paths this executes 1+K SELECTs, not 1+N.
func loadRelations(ctx context.Context, class *Class, parents []*Instance, paths []string) error {
	if len(parents) == 0 || len(paths) == 0 {
		return nil
	}
	heads := make([]string, 0, len(paths))
	tails := make(map[string][]string, len(paths))
	for _, p := range paths {
		head, tail := splitPath(p)
		if _, seen := tails[head]; !seen {
			heads = append(heads, head)
		}
		if tail != "" {
			tails[head] = append(tails[head], tail)
		} else if _, seen := tails[head]; !seen {
			tails[head] = nil
		}
	}
	for _, head := range heads {
		rel, err := class.Relation(head)
		if err != nil {
			return err
		}
		children, err := loadHead(ctx, rel, parents)
		if err != nil {
			return err
		}
		if len(children) > 0 && len(tails[head]) > 0 {
			if err := loadRelations(ctx, rel.Related(), children, tails[head]); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadHead issues the one batched query for a head segment, groups the
// results by foreign-key value and fills every parent's relation
// attribute. It returns the loaded children for tail recursion.
func loadHead(ctx context.Context, rel Relation, parents []*Instance) ([]*Instance, error) {
	keys := make([]any, 0, len(parents))
	seen := make(map[string]struct{}, len(parents))
	for _, p := range parents {
		k := rel.ParentKey(p)
		if k == nil {
			continue
		}
		ks := keyString(k)
		if _, ok := seen[ks]; ok {
			continue
		}
		seen[ks] = struct{}{}
		keys = append(keys, k)
	}

	var children []*Instance
	if len(keys) > 0 {
		b, err := rel.Batch(keys)
		if err != nil {
			return nil, err
		}
		items, err := b.Get(ctx)
		if err != nil {
			return nil, err
		}
		children = items.All()
		if err := rel.afterLoad(children); err != nil {
			return nil, err
		}
	}

	groups := make(map[string][]*Instance, len(children))
	for _, child := range children {
		ks := keyString(rel.GroupKey(child))
		groups[ks] = append(groups[ks], child)
	}

	name := rel.RelName()
	for _, p := range parents {
		group := groups[keyString(rel.ParentKey(p))]
		if rel.Single() {
			if len(group) == 0 {
				p.SetRelation(name, nil)
			} else {
				p.SetRelation(name, group[0])
			}
			continue
		}
		p.SetRelation(name, collection.New(group...))
	}
	return children, nil
}

// keyString normalizes key values across driver types so int64(1),
// "1" and float64(1) group together.
func keyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprintf("%v", v)
}
