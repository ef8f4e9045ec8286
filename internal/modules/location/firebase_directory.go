// README: Read-only driver directory over the Firebase Realtime Database node the driver app writes.
package location

import (
	"context"
	"fmt"
	"sort"
	"time"

	"firebase.google.com/go/v4/db"

	"happyauto/internal/types"
)

const firebaseDriversNode = "driver_locations"

// rtdbDriverEntry mirrors a single entry under /driver_locations/{driverID}.
type rtdbDriverEntry struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Status    string   `json:"status"`
	Timestamp int64    `json:"timestamp"`
}

// FirebaseDirectory is read-only: the driver app writes its own node.
type FirebaseDirectory struct {
	client *db.Client
}

func NewFirebaseDirectory(client *db.Client) *FirebaseDirectory {
	return &FirebaseDirectory{client: client}
}

// ListAvailable fetches only drivers whose status is "online".
func (f *FirebaseDirectory) ListAvailable(ctx context.Context) ([]Driver, error) {
	var data map[string]rtdbDriverEntry
	err := f.client.NewRef(firebaseDriversNode).
		OrderByChild("status").
		EqualTo(string(StatusOnline)).
		Get(ctx, &data)
	if err != nil {
		return nil, fmt.Errorf("querying online drivers: %w", err)
	}
	return driversFromRTDB(data), nil
}

func (f *FirebaseDirectory) Get(ctx context.Context, id types.ID) (*Driver, error) {
	var entry *rtdbDriverEntry
	if err := f.client.NewRef(firebaseDriversNode+"/"+string(id)).Get(ctx, &entry); err != nil {
		return nil, fmt.Errorf("reading driver %s: %w", string(id), err)
	}
	if entry == nil {
		return nil, ErrDriverNotFound
	}
	d := entry.toDriver(id)
	return &d, nil
}

func (e rtdbDriverEntry) toDriver(id types.ID) Driver {
	status := DriverStatus(e.Status)
	d := Driver{
		ID:        id,
		Status:    status,
		Available: status == StatusOnline,
	}
	// A node without both coordinates has no location and is never ranked.
	if e.Lat != nil && e.Lng != nil {
		d.Location = &types.Point{Lat: *e.Lat, Lng: *e.Lng}
	}
	if e.Timestamp > 0 {
		d.UpdatedAt = time.UnixMilli(e.Timestamp).UTC()
	}
	return d
}

// driversFromRTDB converts the query result, ordered by driver id since RTDB
// maps carry no order.
func driversFromRTDB(data map[string]rtdbDriverEntry) []Driver {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Driver, 0, len(ids))
	for _, id := range ids {
		entry := data[id]
		if entry.Status != string(StatusOnline) {
			continue
		}
		out = append(out, entry.toDriver(types.ID(id)))
	}
	return out
}
