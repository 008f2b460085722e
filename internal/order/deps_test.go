package order

import (
	"testing"

	"boardcore/testutil"
)

func TestNoStorageDependencies(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StorageImportForbidden, "order is a pure engine package")
}
