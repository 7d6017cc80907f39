package registry

import "errors"

// ErrNameCollision is returned when a registration would duplicate a name
// within its scope (spec §7 NameCollision). Registration calls surface this
// to the script as nil; no partial state is committed.
var ErrNameCollision = errors.New("name already registered in this scope")

// ErrNotFound is returned when a plugin instance, module or action referenced
// by name does not exist (spec §7 NotFound).
var ErrNotFound = errors.New("not found")
