package sqlbuilderutil

import (
	"fmt"
	"strings"

	"fknsrs.biz/p/reflectutil"
	"fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytcatalog/internal/stringutil"
)

// Table is a sqlbuilder table whose columns can also be looked up by Go
// field name, so query code and filters can use the model's vocabulary.
type Table struct {
	*sqlbuilder.Table
	name    string
	nameMap map[string]string
}

func (t *Table) Has(name string) bool {
	_, ok := t.nameMap[name]
	if !ok {
		_, ok = t.nameMap[strings.ToLower(name)]
	}

	return ok
}

func (t *Table) column(name string) (string, bool) {
	if columnName, ok := t.nameMap[name]; ok {
		return columnName, true
	}

	columnName, ok := t.nameMap[strings.ToLower(name)]

	return columnName, ok
}

// C returns the column for a field or column name, or nil if the table has
// no such column.
func (t *Table) C(name string) *sqlbuilder.BasicColumn {
	columnName, ok := t.column(name)
	if !ok {
		return nil
	}

	return t.Table.C(columnName)
}

func (t *Table) MustC(name string) *sqlbuilder.BasicColumn {
	c := t.C(name)
	if c == nil {
		panic(fmt.Errorf("sqlbuilderutil.Table.MustC: no column %q in table %s", name, t.name))
	}

	return c
}

func MakeTable(v interface{}) (*Table, error) {
	s, err := reflectutil.GetDescription(v)
	if err != nil {
		return nil, fmt.Errorf("sqlbuilderutil.MakeTable: could not get struct description: %w", err)
	}

	var tableName string
	var columnNames []string

	nameMap := make(map[string]string)

	for _, f := range s.Fields().WithoutTagValue("sql", "-") {
		columnName := stringutil.PascalToSnake(f.Name())

		sqlTag := f.Tag("sql")
		if sqlTag != nil {
			if sqlTag.Value() != "" {
				columnName = sqlTag.Value()
			}

			if p := sqlTag.Parameter("table"); p != nil {
				tableName = p.Value()
			}
		}

		columnNames = append(columnNames, columnName)

		nameMap[f.Name()] = columnName
		nameMap[strings.ToLower(f.Name())] = columnName
		nameMap[columnName] = columnName
	}

	if tableName == "" {
		tableName = stringutil.PascalToSnake(s.Name())
	}

	return &Table{
		Table:   sqlbuilder.NewTable(tableName, columnNames...),
		name:    tableName,
		nameMap: nameMap,
	}, nil
}

func MustMakeTable(v interface{}) *Table {
	t, err := MakeTable(v)
	if err != nil {
		panic(err)
	}

	return t
}
