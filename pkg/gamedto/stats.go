package gamedto

type EngineStats struct {
	Sessions   int            `json:"sessions"`
	Challenges int            `json:"challenges"`
	ByKind     map[string]int `json:"by_kind"`
}

// DropResult is returned by the realm cleanup endpoint.
type DropResult struct {
	Realm      string      `json:"realm"`
	Sessions   []Session   `json:"sessions"`
	Challenges []Challenge `json:"challenges"`
}

type Error struct {
	Error string `json:"error"`
}
