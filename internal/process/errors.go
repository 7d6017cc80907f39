package process

import "errors"

// ErrSpawnFailed covers executable-not-found, permission-denied and
// fork-failure cases (spec §7 SpawnFailed). Nothing is partially registered
// when this is returned.
var ErrSpawnFailed = errors.New("spawn failed")
