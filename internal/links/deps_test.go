package links

import (
	"testing"

	"boardcore/testutil"
)

func TestNoStorageDependencies(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StorageImportForbidden, "links is a pure engine package")
}
