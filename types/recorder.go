package types

import "context"

// Storer is the write half of the statement cache contract.
// Write policies depend on this instead of the concrete cache.
type Storer interface {
	Store(key, value string) error
}

// Recorder receives mutation statements that were executed successfully.
type Recorder interface {

	/*
		Record is called once per successful mutation.
		1. CRUD helper builds the statement
		2. Database executes it
		3. Write policy forwards the statement text here
	*/
	Record(ctx context.Context, stmt string) error
}
