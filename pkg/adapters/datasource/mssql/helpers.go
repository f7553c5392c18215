package mssql

import (
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
)

// splitSchemaTable splits "schema.table" or "[schema].[table]".
// ok is false for an unqualified name.
func splitSchemaTable(tableName string) (schema, table string, ok bool) {
	cleaned := strings.ReplaceAll(tableName, "[", "")
	cleaned = strings.ReplaceAll(cleaned, "]", "")

	parts := strings.SplitN(cleaned, ".", 2)
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1], true
	}
	return "", cleaned, false
}

// quoteName mirrors SQL Server QUOTENAME: square brackets with ] doubled.
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// buildFullyQualifiedName builds [schema].[table].
func buildFullyQualifiedName(schema, table string) string {
	return quoteName(schema) + "." + quoteName(table)
}

// convertValue turns UNIQUEIDENTIFIER bytes, which the driver returns in
// SQL Server's mixed-endian layout, into the canonical string form.
func convertValue(dbType string, v any) (any, bool) {
	if dbType != "UNIQUEIDENTIFIER" {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	var id mssql.UniqueIdentifier
	if err := id.Scan(b); err != nil {
		return nil, false
	}
	return id.String(), true
}
