package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicCartItemAdded    = "cart.item_added"
	TopicCartItemRemoved  = "cart.item_removed"
	TopicCartQuantitySet  = "cart.quantity_set"
	TopicCartCleared      = "cart.cleared"
	TopicCatalogRefreshed = "catalog.refreshed"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicCartItemAdded,
		TopicCartItemRemoved,
		TopicCartQuantitySet,
		TopicCartCleared,
		TopicCatalogRefreshed,
	}
}
