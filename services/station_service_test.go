package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/models"
)

func TestStationRouterRoutesCategories(t *testing.T) {
	f := newFixture(t)

	var mains, drinks models.MenuCategory
	require.NoError(t, f.db.Where("name = ?", "Mains").First(&mains).Error)
	require.NoError(t, f.db.Where("name = ?", "Drinks").First(&drinks).Error)

	station, ok := f.router.StationFor(mains.ID)
	require.True(t, ok)
	assert.Equal(t, models.StationKitchen, station)
	assert.Equal(t, []uint{drinks.ID}, f.router.CategoriesFor(models.StationBar))

	// kategori tanpa kolom station dicoba dari namanya
	byName := models.MenuCategory{Name: "Bar", IsActive: true}
	unknown := models.MenuCategory{Name: "Merchandise", IsActive: true}
	require.NoError(t, f.db.Create(&byName).Error)
	require.NoError(t, f.db.Create(&unknown).Error)
	require.NoError(t, f.db.Model(&drinks).Update("station", models.StationPastry).Error)
	require.NoError(t, f.router.Refresh(f.ctx))

	station, ok = f.router.StationFor(byName.ID)
	require.True(t, ok)
	assert.Equal(t, models.StationBar, station)
	_, ok = f.router.StationFor(unknown.ID)
	assert.False(t, ok)
	station, _ = f.router.StationFor(drinks.ID)
	assert.Equal(t, models.StationPastry, station)
}

func TestAssignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	paid := f.examplePaidOrder()

	stations, err := f.assigner.Assign(f.ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Station{models.StationKitchen, models.StationBar}, stations)

	var count int64
	require.NoError(t, f.db.Model(&models.StationOrder{}).Where("order_id = ?", paid.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestStationQueue(t *testing.T) {
	f := newFixture(t)
	f.placeOrder(f.scan("device-unpaid").SessionToken, ItemRequest{MenuID: f.menuID("Pizza"), Quantity: 1})
	paid := f.examplePaidOrder()

	kitchen, err := f.stations.Queue(f.ctx, models.StationKitchen)
	require.NoError(t, err)
	require.Len(t, kitchen, 1)
	assert.Equal(t, "T01", kitchen[0].TableNumber)
	require.Len(t, kitchen[0].Orders, 1)
	assert.Equal(t, paid.OrderNumber, kitchen[0].Orders[0].OrderNumber)
	require.Len(t, kitchen[0].Orders[0].Items, 1)
	assert.Equal(t, "Pizza", kitchen[0].Orders[0].Items[0].MenuName)

	bar, err := f.stations.Queue(f.ctx, models.StationBar)
	require.NoError(t, err)
	require.Len(t, bar, 1)
	assert.Equal(t, "Juice", bar[0].Orders[0].Items[0].MenuName)

	pastry, err := f.stations.Queue(f.ctx, models.StationPastry)
	require.NoError(t, err)
	assert.Empty(t, pastry)

	_, err = f.orders.MarkItemDone(f.ctx, kitchen[0].Orders[0].Items[0].OrderItemID, stationPtr(models.StationKitchen))
	require.NoError(t, err)
	kitchen, err = f.stations.Queue(f.ctx, models.StationKitchen)
	require.NoError(t, err)
	assert.Empty(t, kitchen)
}

func TestStationStats(t *testing.T) {
	f := newFixture(t)
	paid := f.examplePaidOrder()
	order := f.reloadOrder(paid.ID)

	stats, err := f.stations.Stats(f.ctx, models.StationKitchen)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.PendingItems)
	assert.Zero(t, stats.DoneToday)
	assert.Zero(t, stats.LowStock)

	_, err = f.orders.MarkItemDone(f.ctx, itemFor(t, order, f.menuID("Pizza")).ID, nil)
	require.NoError(t, err)
	_, err = f.stock.SetStock(f.ctx, f.menuID("Pizza"), 1)
	require.NoError(t, err)

	stats, err = f.stations.Stats(f.ctx, models.StationKitchen)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingItems)
	assert.EqualValues(t, 1, stats.DoneToday)
	assert.EqualValues(t, 1, stats.LowStock)
}

func TestStationMenusAndOwnership(t *testing.T) {
	f := newFixture(t)

	menus, err := f.stations.Menus(f.ctx, models.StationPastry)
	require.NoError(t, err)
	require.Len(t, menus, 1)
	assert.Equal(t, "Croissant", menus[0].Name)
	require.NotNil(t, menus[0].Category)
	assert.Equal(t, "Pastry", menus[0].Category.Name)

	owns, err := f.stations.OwnsMenu(f.ctx, models.StationBar, f.menuID("Juice"))
	require.NoError(t, err)
	assert.True(t, owns)
	owns, err = f.stations.OwnsMenu(f.ctx, models.StationBar, f.menuID("Pizza"))
	require.NoError(t, err)
	assert.False(t, owns)
	owns, err = f.stations.OwnsMenu(f.ctx, models.StationBar, 9999)
	require.NoError(t, err)
	assert.False(t, owns)
}
