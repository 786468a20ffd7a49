// Package modules holds the schema modules sysrepod installs at startup
// when no module registry directory is configured. Shaped the way
// datastore's own tests build a module (schema.Module + nested schema.Node
// trees) since nothing in the retrieved corpus parses YANG text; a real
// deployment would point the daemon at a directory of compiled module
// descriptions instead.
package modules

import "github.com/sysrepo-go/sysrepod/schema"

// Builtin returns the module set sysrepod loads when it is not given an
// explicit module list: ietf-interfaces-style interface configuration and a
// small self-describing monitoring module exposing daemon state as
// operational data.
func Builtin() []*schema.Module {
	return []*schema.Module{interfacesModule(), monitoringModule()}
}

func interfacesModule() *schema.Module {
	mtu := &schema.Node{Name: "mtu", Kind: schema.KindLeaf, Type: schema.TUint32}
	enabled := &schema.Node{Name: "enabled", Kind: schema.KindLeaf, Type: schema.TBool}
	description := &schema.Node{Name: "description", Kind: schema.KindLeaf, Type: schema.TString}
	name := &schema.Node{Name: "name", Kind: schema.KindLeaf, Type: schema.TString, Mandatory: true}
	iface := &schema.Node{
		Name: "interface", Kind: schema.KindList, Keys: []string{"name"},
		Children: []*schema.Node{name, description, enabled, mtu},
	}
	root := &schema.Node{Name: "interfaces", Kind: schema.KindContainer, Children: []*schema.Node{iface}}
	return &schema.Module{
		Name:      "ietf-interfaces",
		Namespace: "urn:ietf:params:xml:ns:yang:ietf-interfaces",
		Prefix:    "if",
		Latest:    "2018-02-20",
		Revisions: map[string]*schema.Revision{"2018-02-20": {Date: "2018-02-20", Root: root}},
	}
}

func monitoringModule() *schema.Module {
	sessions := &schema.Node{Name: "active-sessions", Kind: schema.KindLeaf, Type: schema.TUint32}
	uptime := &schema.Node{Name: "uptime-seconds", Kind: schema.KindLeaf, Type: schema.TUint64}
	root := &schema.Node{Name: "state", Kind: schema.KindContainer, Children: []*schema.Node{sessions, uptime}}
	return &schema.Module{
		Name:      "sysrepod-monitoring",
		Namespace: "urn:sysrepod:yang:sysrepod-monitoring",
		Prefix:    "srmon",
		Latest:    "2026-01-01",
		Revisions: map[string]*schema.Revision{"2026-01-01": {Date: "2026-01-01", Root: root}},
	}
}
