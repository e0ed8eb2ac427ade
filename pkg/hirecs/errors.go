package hirecs

import "errors"

var (
	// ErrSelfLink is returned by [Run] when a node's link list contains an
	// entry pointing back at the node itself. Self-references must be
	// absorbed into the self-weight by the builder.
	ErrSelfLink = errors.New("self-reference stored as a link entry")

	// ErrUnknownLinkDest is returned by [Run] when a link points at a node
	// that is not part of the input set.
	ErrUnknownLinkDest = errors.New("link to unknown node")

	// ErrAsymmetricLink is returned by [Run] when the graph is declared
	// symmetric but a link has no back-link or the back-link weight differs.
	ErrAsymmetricLink = errors.New("asymmetric link on a symmetric graph")

	// ErrMarginRange is returned by [Run] when the modularity profit margin
	// lies outside [-1, 1].
	ErrMarginRange = errors.New("modularity profit margin out of [-1, 1]")
)
