// Package prompts builds the system prompts sent to the LLM gateway.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// MaxSampleTables bounds how many tables contribute sample rows to a prompt.
const MaxSampleTables = 3

// GeneralChatPrompt is the persona used when a message is not a data question.
const GeneralChatPrompt = `你是问数智能体，一个专业的数据库助手。

你具备以下能力和特点：
1. 擅长解释数据库概念、SQL查询和数据分析方法
2. 能够提供友好、准确和有帮助的回答
3. 使用清晰易懂的语言解释复杂概念
4. 在必要时提供SQL代码示例和解释
5. 对于不确定的问题，会诚实地表达自己的限制并提供建议

请根据用户的问题提供最相关、最有帮助的回答。如果问题涉及SQL或数据库操作，尽量提供示例和详细解释。
`

const sqlGenerationPreamble = `你是一个专业的数据库查询助手，能够将自然语言转换为精确的SQL查询。

你的主要职责是：
1. 理解用户的自然语言查询意图
2. 根据提供的数据库结构生成符合语法的SQL查询
3. 解释SQL查询的逻辑和预期结果

生成SQL时应遵循以下原则：
- 仅使用SELECT语句进行查询，不执行任何修改数据的操作
- 确保SQL语法正确，考虑表关系和字段类型
- 优先使用表的主键或索引字段进行JOIN和WHERE条件
- 如果用户没有指定返回行数，请显式添加LIMIT子句
- 必要时使用子查询、GROUP BY、HAVING等高级功能
- 如果存在多种可能的理解，选择最合理的一种并说明你做了哪些假设

输出格式要求：
1. 首先给出生成的SQL语句，使用` + "```sql ```" + `代码块格式
2. 然后解释SQL语句的逻辑和预期结果
3. 如果无法生成SQL或需要更多信息，清晰说明原因

数据库结构信息如下：
`

// TableSample is the sample rows of one table, in prompt order.
type TableSample struct {
	Table   string
	Columns []string // header order; derived from the rows when empty
	Rows    []map[string]any
}

// BuildSQLSystemPrompt renders the schema and up to MaxSampleTables sample
// tables into the SQL generation system prompt.
func BuildSQLSystemPrompt(snapshot *datasource.SchemaSnapshot, samples []TableSample) string {
	var prompt strings.Builder
	prompt.WriteString(sqlGenerationPreamble)

	if snapshot != nil {
		for _, table := range snapshot.Tables {
			writeTable(&prompt, table)
		}
	}

	written := 0
	for _, sample := range samples {
		if written == MaxSampleTables {
			break
		}
		if len(sample.Rows) == 0 {
			continue
		}
		if written == 0 {
			prompt.WriteString("\n部分表的样本数据:\n")
		}
		writeSample(&prompt, sample)
		written++
	}

	return prompt.String()
}

func writeTable(prompt *strings.Builder, table datasource.TableSchema) {
	prompt.WriteString(fmt.Sprintf("\n表名: %s", table.Name))
	if table.Comment != "" {
		prompt.WriteString(fmt.Sprintf(" (说明: %s)", table.Comment))
	}
	prompt.WriteString("\n")

	references := columnReferences(table.ForeignKeys)

	if len(table.Columns) > 0 {
		prompt.WriteString("字段:\n")
		for _, col := range table.Columns {
			colType := col.ColumnType
			if colType == "" {
				colType = col.DataType
			}
			nullable := "非空"
			if col.Nullable {
				nullable = "可空"
			}
			pk := "否"
			if col.IsPrimaryKey {
				pk = "是"
			}

			prompt.WriteString(fmt.Sprintf("- %s (%s, %s, 主键: %s)", col.Name, colType, nullable, pk))
			if col.Comment != "" {
				prompt.WriteString(fmt.Sprintf(" 说明: %s", col.Comment))
			}
			if ref, ok := references[col.Name]; ok {
				prompt.WriteString(fmt.Sprintf(" 外键 -> %s", ref))
			}
			prompt.WriteString("\n")
		}
	}
	prompt.WriteString("\n")
}

// columnReferences maps each constrained column to "table.column".
func columnReferences(fks []datasource.ForeignKey) map[string]string {
	refs := make(map[string]string)
	for _, fk := range fks {
		for i, col := range fk.Columns {
			if i >= len(fk.ReferredColumns) {
				break
			}
			if _, seen := refs[col]; !seen {
				refs[col] = fk.ReferredTable + "." + fk.ReferredColumns[i]
			}
		}
	}
	return refs
}

func writeSample(prompt *strings.Builder, sample TableSample) {
	columns := sample.Columns
	if len(columns) == 0 {
		columns = rowKeys(sample.Rows[0])
	}

	prompt.WriteString(fmt.Sprintf("\n表 %s 样本数据:\n", sample.Table))
	prompt.WriteString("| " + strings.Join(columns, " | ") + " |\n")

	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	prompt.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	for _, row := range sample.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		prompt.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	prompt.WriteString("\n")
}

func rowKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	s := fmt.Sprint(v)
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
