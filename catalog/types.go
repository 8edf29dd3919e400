package catalog

// Channel is one playable entry of the upstream bundle. Values are never
// modified after a snapshot is published.
type Channel struct {
	ID    string
	Name  string
	URL   string
	Group string
}
