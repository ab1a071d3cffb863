package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

func TestCreateItemReportsDuplicateAsStateConflict(t *testing.T) {
	repository := NewRepository(dbtest.Client(t).DB())
	ctx := context.Background()

	for _, kind := range []enums.CustodyItemKind{enums.CustodyItemKey, enums.CustodyItemDocument} {
		first := &Item{Kind: kind, VehicleID: "1234ABC", ItemType: "spare", Status: enums.CustodyStatusStored, Location: "office"}
		require.NoError(t, repository.CreateItem(ctx, first))
		assert.Equal(t, 1, first.Version)

		second := &Item{Kind: kind, VehicleID: "1234ABC", ItemType: "spare", Status: enums.CustodyStatusStored, Location: "office"}
		err := repository.CreateItem(ctx, second)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "kind %s", kind)
	}
}
