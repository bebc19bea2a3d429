// Package models declares the persisted billing entities and their pure derivations.
package models

// All lists the models in dependency order for AutoMigrate.
func All() []any {
	return []any{&Client{}, &ProductService{}, &Bill{}, &BillItem{}}
}
