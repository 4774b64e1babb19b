// Package dynamotest provides an in-memory single-table DynamoDB fake for
// unit tests. It implements the subset of the DynamoDB API the stores use:
// conditional puts, key/prefix queries with pagination, update expressions,
// and two-item write transactions.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table is an in-memory stand-in for one or more DynamoDB tables.
// Items are keyed by the concatenation of their key attribute values.
type Table struct {
	mu    sync.Mutex
	rows  map[string]map[string]map[string]types.AttributeValue // table -> key -> item
	calls map[string]int

	// FailNext, when set, fails the next matching operation once.
	FailNext map[string]error
}

// New returns an empty Table fake.
func New() *Table {
	return &Table{
		rows:     map[string]map[string]map[string]types.AttributeValue{},
		calls:    map[string]int{},
		FailNext: map[string]error{},
	}
}

func (t *Table) failure(op string) error {
	if err, ok := t.FailNext[op]; ok {
		delete(t.FailNext, op)
		return err
	}
	return nil
}

func (t *Table) table(name string) map[string]map[string]types.AttributeValue {
	tbl, ok := t.rows[name]
	if !ok {
		tbl = map[string]map[string]types.AttributeValue{}
		t.rows[name] = tbl
	}
	return tbl
}

func keyString(key map[string]types.AttributeValue) string {
	names := make([]string, 0, len(key))
	for n := range key {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, attrString(key[n]))
	}
	return strings.Join(parts, "\x00")
}

func attrString(v types.AttributeValue) string {
	switch av := v.(type) {
	case *types.AttributeValueMemberS:
		return av.Value
	case *types.AttributeValueMemberN:
		return av.Value
	default:
		return fmt.Sprintf("%v", v)
	}
}

func itemKey(item map[string]types.AttributeValue, keyAttrs []string) string {
	key := map[string]types.AttributeValue{}
	for _, n := range keyAttrs {
		if v, ok := item[n]; ok {
			key[n] = v
		}
	}
	return keyString(key)
}

func keyAttrsOf(item map[string]types.AttributeValue) []string {
	if _, ok := item["PK"]; ok {
		return []string{"PK", "SK"}
	}
	if _, ok := item["rateLimitKey"]; ok {
		return []string{"rateLimitKey"}
	}
	return []string{"PK", "SK"}
}

// Count returns how many times the named operation was invoked.
func (t *Table) Count(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// Len returns the number of items stored in the named table.
func (t *Table) Len(table string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows[table])
}

// Item returns the stored item for the given PK/SK, or nil.
func (t *Table) Item(table, pk, sk string) map[string]types.AttributeValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows[table][keyString(map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	})]
}

// Seed stores an item directly, bypassing the API surface.
func (t *Table) Seed(table string, item map[string]types.AttributeValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table(table)[itemKey(item, keyAttrsOf(item))] = item
}

func (t *Table) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["PutItem"]++
	if err := t.failure("PutItem"); err != nil {
		return nil, err
	}
	if params.Item == nil || params.TableName == nil {
		return nil, errors.New("dynamotest: missing item or table")
	}

	tbl := t.table(*params.TableName)
	k := itemKey(params.Item, keyAttrsOf(params.Item))

	if params.ConditionExpression != nil && strings.HasPrefix(*params.ConditionExpression, "attribute_not_exists(") {
		if _, exists := tbl[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	tbl[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (t *Table) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["GetItem"]++
	if err := t.failure("GetItem"); err != nil {
		return nil, err
	}
	item, ok := t.table(*params.TableName)[keyString(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// Query supports the two key conditions the stores use:
// "PK = :pk" and "PK = :pk AND begins_with(SK, :prefix)", with
// ScanIndexForward, Limit, ExclusiveStartKey and "attr = :val" filters.
func (t *Table) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["Query"]++
	if err := t.failure("Query"); err != nil {
		return nil, err
	}
	if params.KeyConditionExpression == nil {
		return nil, errors.New("dynamotest: missing key condition")
	}

	pkVal, skPrefix, err := parseKeyCondition(*params.KeyConditionExpression, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	var matched []map[string]types.AttributeValue
	for _, item := range t.table(*params.TableName) {
		pk, _ := item["PK"].(*types.AttributeValueMemberS)
		sk, _ := item["SK"].(*types.AttributeValueMemberS)
		if pk == nil || pk.Value != pkVal {
			continue
		}
		if skPrefix != "" && (sk == nil || !strings.HasPrefix(sk.Value, skPrefix)) {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		si, _ := matched[i]["SK"].(*types.AttributeValueMemberS)
		sj, _ := matched[j]["SK"].(*types.AttributeValueMemberS)
		if si == nil || sj == nil {
			return i < j
		}
		return si.Value < sj.Value
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		want := keyString(params.ExclusiveStartKey)
		for i, item := range matched {
			if itemKey(item, []string{"PK", "SK"}) == want {
				start = i + 1
				break
			}
		}
	}
	matched = matched[start:]

	var lastKey map[string]types.AttributeValue
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		page := matched[:int(*params.Limit)]
		last := page[len(page)-1]
		lastKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
		matched = page
	}

	if params.FilterExpression != nil {
		matched = applyFilter(matched, *params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	}

	return &dyn.QueryOutput{Items: matched, LastEvaluatedKey: lastKey, Count: int32(len(matched))}, nil
}

func (t *Table) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["UpdateItem"]++
	if err := t.failure("UpdateItem"); err != nil {
		return nil, err
	}
	item, err := t.applyUpdate(*params.TableName, params.Key, params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (t *Table) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["TransactWriteItems"]++
	if err := t.failure("TransactWriteItems"); err != nil {
		return nil, err
	}

	// validate conditions before applying anything
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil && p.ConditionExpression != nil && strings.HasPrefix(*p.ConditionExpression, "attribute_not_exists(") {
			tbl := t.table(*p.TableName)
			if _, exists := tbl[itemKey(p.Item, keyAttrsOf(p.Item))]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			p := it.Put
			t.table(*p.TableName)[itemKey(p.Item, keyAttrsOf(p.Item))] = p.Item
		case it.Update != nil:
			u := it.Update
			if _, err := t.applyUpdate(*u.TableName, u.Key, u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// applyUpdate handles "SET a = :v, #n = :v2, c = if_not_exists(c, :zero) + :inc".
// Missing items are created (DynamoDB upsert semantics).
func (t *Table) applyUpdate(table string, key map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	if expr == nil {
		return nil, errors.New("dynamotest: missing update expression")
	}
	tbl := t.table(table)
	k := keyString(key)
	item, ok := tbl[k]
	if !ok {
		item = map[string]types.AttributeValue{}
		for n, v := range key {
			item[n] = v
		}
		tbl[k] = item
	}

	body, found := strings.CutPrefix(strings.TrimSpace(*expr), "SET ")
	if !found {
		return nil, fmt.Errorf("dynamotest: unsupported update expression %q", *expr)
	}

	for _, clause := range splitClauses(body) {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("dynamotest: bad clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		valueExpr := strings.TrimSpace(parts[1])

		if strings.Contains(valueExpr, "if_not_exists") {
			// counter increment: if_not_exists(attr, :zero) + :inc
			incName := valueExpr[strings.LastIndex(valueExpr, ":"):]
			inc, err := numValue(values[strings.TrimSpace(incName)])
			if err != nil {
				return nil, err
			}
			current := int64(0)
			if existing, ok := item[attr].(*types.AttributeValueMemberN); ok {
				current, _ = strconv.ParseInt(existing.Value, 10, 64)
			}
			item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+inc, 10)}
			continue
		}

		v, ok := values[valueExpr]
		if !ok {
			return nil, fmt.Errorf("dynamotest: missing value %q", valueExpr)
		}
		item[attr] = v
	}

	return item, nil
}

// splitClauses splits on commas that are not inside parentheses.
func splitClauses(body string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, body[start:])
	return out
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}

func parseKeyCondition(expr string, values map[string]types.AttributeValue) (pk, skPrefix string, err error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "PK = "):
			v, ok := values[strings.TrimSpace(strings.TrimPrefix(clause, "PK = "))]
			if !ok {
				return "", "", fmt.Errorf("dynamotest: missing PK value in %q", expr)
			}
			pk = attrString(v)
		case strings.HasPrefix(clause, "begins_with(SK,"):
			inner := strings.TrimSuffix(strings.TrimPrefix(clause, "begins_with(SK,"), ")")
			v, ok := values[strings.TrimSpace(inner)]
			if !ok {
				return "", "", fmt.Errorf("dynamotest: missing SK prefix value in %q", expr)
			}
			skPrefix = attrString(v)
		default:
			return "", "", fmt.Errorf("dynamotest: unsupported key condition %q", clause)
		}
	}
	if pk == "" {
		return "", "", fmt.Errorf("dynamotest: no PK clause in %q", expr)
	}
	return pk, skPrefix, nil
}

// applyFilter supports conjunctions of "attr = :val" clauses.
func applyFilter(items []map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) []map[string]types.AttributeValue {
	var out []map[string]types.AttributeValue
	clauses := strings.Split(expr, " AND ")
	for _, item := range items {
		keep := true
		for _, clause := range clauses {
			parts := strings.SplitN(clause, "=", 2)
			if len(parts) != 2 {
				keep = false
				break
			}
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want, ok := values[strings.TrimSpace(parts[1])]
			if !ok {
				keep = false
				break
			}
			have, ok := item[attr]
			if !ok || attrString(have) != attrString(want) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}
	return out
}

func numValue(v types.AttributeValue) (int64, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("dynamotest: expected numeric value")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}
