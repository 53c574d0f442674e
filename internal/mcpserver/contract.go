package mcpserver

// DataContract describes how tally records are shaped so that LLM consumers
// send well-formed tool arguments.
const DataContract = `# Tally Data Contract

Tally keeps three independent lists: transactions, notes and tasks. Every
record has an opaque string ` + "`id`" + ` assigned on creation. Lists are ordered
newest first.

## Transactions

| field       | rules                                                         |
|-------------|---------------------------------------------------------------|
| description | required, surrounding spaces are trimmed                      |
| amount      | required, strictly positive; the sign is derived from ` + "`type`" + ` |
| type        | ` + "`income`" + ` or ` + "`expense`" + `                                         |
| category    | optional, stored lowercase; blank exports as "Uncategorized"   |
| date        | optional ` + "`YYYY-MM-DD`" + `, defaults to today, never in the future   |

Expenses are stored with a negative amount. Summaries report income and
expense as positive magnitudes, the savings rate as a percentage with one
decimal and the trend of each figure against last month.

At the start of a new calendar month the current totals become "last month"
and the transaction list is emptied.

## Notes

- ` + "`title`" + ` is required. ` + "`body`" + ` is free Markdown text.
- Tags are written inline as ` + "`#tag`" + ` (a letter first, then letters,
  digits, ` + "`_`" + `, ` + "`-`" + ` or ` + "`/`" + `) or listed under ` + "`tags:`" + ` in a YAML
  frontmatter block. Tags are case-insensitive and stored lowercase.
- Listings show an excerpt of the first 150 characters of the body.

## Tasks

- ` + "`text`" + ` is required.
- ` + "`completed`" + ` toggles with ` + "`complete_task`" + `; ` + "`clear_completed_tasks`" + `
  removes every finished task at once.
`
