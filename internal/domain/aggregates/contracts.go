package aggregates

import (
	"fmt"
	"strings"
)

// WriteTxOwnership says who opens the transaction around a write.
type WriteTxOwnership string

const (
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
	WriteTxOwnedByCaller    WriteTxOwnership = "caller_owned"
)

// ReadPolicy says which reads an aggregate is allowed to expose.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped limits aggregate reads to what a write decision needs.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicyTableRepoQueries leaves listings and reports to the table repos.
	ReadPolicyTableRepoQueries ReadPolicy = "table_repo_queries"
)

// Contract is the self-description every marketplace aggregate publishes.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	// Tables lists the tables the aggregate writes.
	Tables []string
	Notes  string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Validate rejects contracts that would let a ledger write escape its transaction.
func (c Contract) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("aggregate contract has no name")
	}
	switch c.WriteTxOwnership {
	case WriteTxOwnedByAggregate, WriteTxOwnedByCaller:
	default:
		return fmt.Errorf("%s: unknown write tx ownership %q", c.Name, c.WriteTxOwnership)
	}
	switch c.ReadPolicy {
	case ReadPolicyInvariantScoped, ReadPolicyTableRepoQueries:
	default:
		return fmt.Errorf("%s: unknown read policy %q", c.Name, c.ReadPolicy)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("%s: contract lists no tables", c.Name)
	}
	return nil
}
