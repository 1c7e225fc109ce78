package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Name     string          `hcl:"name,optional"`
	Elements []*ElementBlock `hcl:"element,block"`
	Blocks   []*BlockBlock   `hcl:"block,block"`
	Links    []*LinkBlock    `hcl:"link,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

// ElementBlock is `element "<kind>" "<id>" { <property> = <value> ... }`.
type ElementBlock struct {
	Kind string   `hcl:"kind,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

// BlockBlock is `block "<type>" "<name>" { <param> = <value> ... }`.
type BlockBlock struct {
	Type string   `hcl:"type,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// LinkBlock is `link { from = "a.src" to = "b" }`.
type LinkBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}
