package targeting

import (
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// Grid is a map-backed Board. Rooms rebuild occupancy from their entity
// lists; tests assemble one directly.
type Grid struct {
	tiles     map[hex.Hex]entities.Terrain
	occupants map[hex.Hex]entities.Combatant
	loot      map[hex.Hex]entities.LootToken
}

var _ Board = (*Grid)(nil)

// NewGrid builds a board from map tiles
func NewGrid(tiles []entities.MapTile) *Grid {
	g := &Grid{
		tiles:     make(map[hex.Hex]entities.Terrain, len(tiles)),
		occupants: make(map[hex.Hex]entities.Combatant),
		loot:      make(map[hex.Hex]entities.LootToken),
	}
	for _, t := range tiles {
		g.tiles[t.Hex] = t.Terrain
	}
	return g
}

// Terrain implements Board
func (g *Grid) Terrain(h hex.Hex) (entities.Terrain, bool) {
	t, ok := g.tiles[h]
	return t, ok
}

// Occupant implements Board
func (g *Grid) Occupant(h hex.Hex) (entities.Combatant, bool) {
	occ, ok := g.occupants[h]
	if !ok || !occ.IsAlive() {
		return nil, false
	}
	return occ, true
}

// Loot implements Board
func (g *Grid) Loot(h hex.Hex) (entities.LootToken, bool) {
	token, ok := g.loot[h]
	return token, ok
}

// Place puts c on its current hex
func (g *Grid) Place(c entities.Combatant) {
	g.occupants[c.GetHex()] = c
}

// Remove clears whatever stands on h
func (g *Grid) Remove(h hex.Hex) {
	delete(g.occupants, h)
}

// Move relocates c from its old hex to to. The caller updates c's own hex.
func (g *Grid) Move(from, to hex.Hex) {
	if occ, ok := g.occupants[from]; ok {
		delete(g.occupants, from)
		g.occupants[to] = occ
	}
}

// DropLoot places a token
func (g *Grid) DropLoot(token entities.LootToken) {
	g.loot[token.Hex] = token
}

// TakeLoot removes and returns the token on h
func (g *Grid) TakeLoot(h hex.Hex) (entities.LootToken, bool) {
	token, ok := g.loot[h]
	if ok {
		delete(g.loot, h)
	}
	return token, ok
}

// LootTokens returns every token on the board ordered by hex
func (g *Grid) LootTokens() []entities.LootToken {
	hexes := make([]hex.Hex, 0, len(g.loot))
	for h := range g.loot {
		hexes = append(hexes, h)
	}
	hex.SortFrom(hex.Hex{}, hexes)
	out := make([]entities.LootToken, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, g.loot[h])
	}
	return out
}
