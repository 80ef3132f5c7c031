/*
Package catalog fetches the read-only game content surfaces from the backend.

It covers the item shop listing, the VIP tier listing, and the live server status.
The catalog is display-only on the client: purchases and VIP upgrades happen through
the game server, so every operation here is a plain authenticated read.
*/
package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/proedition/mucompanion/internal/pkg/apix"
	"github.com/proedition/mucompanion/internal/pkg/errs"
)

// ShopItem is a single purchasable entry in the item shop listing.
type ShopItem struct {
	// ID is the item's unique identifier.
	ID int64 `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Category groups items in the shop UI (weapon, armor, consumable, ...).
	Category string `json:"category"`

	// Price is the item cost in Currency units.
	Price float64 `json:"price"`

	// Currency names the unit Price is denominated in (credits, zen, ...).
	Currency string `json:"currency"`

	// Rarity is the item's rarity tier.
	Rarity string `json:"rarity,omitempty"`

	// Description is the flavor/effect text.
	Description string `json:"description,omitempty"`

	// Stats optionally maps stat names to bonus descriptions ("attack" -> "+1500").
	Stats map[string]string `json:"stats,omitempty"`
}

// VIPTier is a single entry in the VIP program listing.
type VIPTier struct {
	// ID is the tier's unique identifier (also its rank, ascending).
	ID int64 `json:"id"`

	// Name is the tier's display name.
	Name string `json:"name"`

	// Price is the tier's monthly cost.
	Price float64 `json:"price"`

	// Benefits lists the tier's perks as display strings.
	Benefits []string `json:"benefits"`
}

// ServerStatus is the live game-server status summary.
type ServerStatus struct {
	// Status is the coarse availability indicator (online, maintenance, offline).
	Status string `json:"status"`

	// OnlinePlayers is the current connected player count.
	OnlinePlayers int `json:"onlinePlayers"`

	// Uptime is the human-readable uptime string as reported by the server.
	Uptime string `json:"uptime"`

	// Version is the running server version.
	Version string `json:"version"`
}

// Service is the read-only content catalog contract the presentation layers consume.
type Service interface {
	// ShopItems fetches the full item shop listing.
	ShopItems(ctx context.Context) ([]ShopItem, error)

	// VIPTiers fetches the VIP tier listing in ascending rank order.
	VIPTiers(ctx context.Context) ([]VIPTier, error)

	// ServerStatus fetches the live server status summary.
	ServerStatus(ctx context.Context) (*ServerStatus, error)
}

// Client is the HTTP-backed catalog Service.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

var _ Service = (*Client)(nil)

// NewClient constructs a catalog Client against the backend base URL.
func NewClient(httpClient *http.Client, serverURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		apiURL:     serverURL + "/api",
	}
}

// ShopItems fetches the full item shop listing.
func (c *Client) ShopItems(ctx context.Context) ([]ShopItem, error) {
	var items []ShopItem
	if apiErr := c.get(ctx, "/shop/items", &items); apiErr != nil {
		return nil, apiErr
	}
	return items, nil
}

// VIPTiers fetches the VIP tier listing in ascending rank order.
func (c *Client) VIPTiers(ctx context.Context) ([]VIPTier, error) {
	var tiers []VIPTier
	if apiErr := c.get(ctx, "/vip/tiers", &tiers); apiErr != nil {
		return nil, apiErr
	}
	return tiers, nil
}

// ServerStatus fetches the live server status summary.
func (c *Client) ServerStatus(ctx context.Context) (*ServerStatus, error) {
	var status ServerStatus
	if apiErr := c.get(ctx, "/server/status", &status); apiErr != nil {
		return nil, apiErr
	}
	return &status, nil
}

// get issues a GET against the API path and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) *errs.CustomError {
	return apix.Do(ctx, c.httpClient, apix.Request{
		Method: http.MethodGet,
		URL:    c.apiURL + path,
	}, out)
}
