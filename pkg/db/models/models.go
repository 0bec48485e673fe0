package models

// All lists every persisted model in dependency order. Used by dev
// auto-migration on SQLite and by test fixtures.
func All() []any {
	return []any{
		&SubscriptionPlan{},
		&Seller{},
		&SellerSubscription{},
		&Customer{},
		&Product{},
		&SellerStock{},
		&CartLine{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
	}
}
