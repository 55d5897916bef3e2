package models

// All lists the models managed by auto-migration.
func All() []interface{} {
	return []interface{}{&Room{}, &Theme{}, &UserProfile{}, &Hobby{}}
}
