package migrations

import (
	"sort"

	"github.com/clynamic/tagem/src/migration/types"
)

var All = make(map[types.MigrationVersion]types.Migration)

func registerMigration(m types.Migration) {
	All[m.Version()] = m
}

// Every registered migration, oldest first.
func Sorted() []types.Migration {
	result := make([]types.Migration, 0, len(All))
	for _, m := range All {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Version().Before(result[j].Version())
	})
	return result
}
