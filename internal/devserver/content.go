/*
Package devserver embeds a self-contained companion backend for development builds.

This file holds the static content catalog the development backend serves: the item
shop listing and the VIP tier listing, mirroring the live server's storefront.
*/
package devserver

import "github.com/proedition/mucompanion/internal/app/catalog"

// shopItems is the fixed item shop listing.
var shopItems = []catalog.ShopItem{
	{
		ID:          1,
		Name:        "Sword of Destruction +15",
		Category:    "weapons",
		Price:       500,
		Currency:    "gp",
		Rarity:      "legendary",
		Description: "Espada lendária com poder destrutivo máximo",
		Stats:       map[string]string{"attack": "+1500", "skill": "+800", "speed": "+200"},
	},
	{
		ID:          2,
		Name:        "Staff of Magic +15",
		Category:    "weapons",
		Price:       450,
		Currency:    "gp",
		Rarity:      "legendary",
		Description: "Cajado mágico com poder elemental supremo",
		Stats:       map[string]string{"magic": "+1800", "skill": "+1000", "mana": "+500"},
	},
	{
		ID:          3,
		Name:        "Dragon Armor Set +15",
		Category:    "armor",
		Price:       800,
		Currency:    "gp",
		Rarity:      "mythical",
		Description: "Conjunto de armadura de dragão com proteção máxima",
		Stats:       map[string]string{"defense": "+2000", "hp": "+1500", "resistance": "+300"},
	},
	{
		ID:          4,
		Name:        "Angel Wings +15",
		Category:    "wings",
		Price:       1200,
		Currency:    "gp",
		Rarity:      "mythical",
		Description: "Asas angelicais com poder divino",
		Stats:       map[string]string{"speed": "+500", "flight": "+1000", "luck": "+200"},
	},
	{
		ID:          5,
		Name:        "Dragon Pet - Ultimate",
		Category:    "pets",
		Price:       1500,
		Currency:    "gp",
		Rarity:      "mythical",
		Description: "Pet de dragão com habilidades únicas",
		Stats:       map[string]string{"attack": "+800", "defense": "+600", "special": "+1000"},
	},
	{
		ID:          6,
		Name:        "Reset Stone x10",
		Category:    "consumables",
		Price:       200,
		Currency:    "gp",
		Rarity:      "rare",
		Description: "Pedras de reset para evolução rápida",
		Stats:       map[string]string{"reset": "+10", "bonus": "+100%"},
	},
	{
		ID:          7,
		Name:        "Rainbow Aura",
		Category:    "cosmetics",
		Price:       300,
		Currency:    "gp",
		Rarity:      "epic",
		Description: "Aura colorida para personalização",
		Stats:       map[string]string{"style": "+1000", "effect": "+500"},
	},
}

// vipTiers is the fixed VIP tier listing, ascending by rank.
var vipTiers = []catalog.VIPTier{
	{
		ID:    1,
		Name:  "VIP Bronze",
		Price: 9.99,
		Benefits: []string{
			"EXP +20%",
			"Drop +15%",
			"Zen +25%",
			"Respawn -30%",
			"Chat Global",
			"Suporte Prioritário",
		},
	},
	{
		ID:    2,
		Name:  "VIP Prata",
		Price: 19.99,
		Benefits: []string{
			"EXP +35%",
			"Drop +25%",
			"Zen +40%",
			"Respawn -50%",
			"Chat Global + Regional",
			"Suporte VIP",
			"Itens Exclusivos",
			"Eventos Especiais",
		},
	},
	{
		ID:    3,
		Name:  "VIP Ouro",
		Price: 39.99,
		Benefits: []string{
			"EXP +50%",
			"Drop +40%",
			"Zen +60%",
			"Respawn -70%",
			"Chat Global + Regional + Privado",
			"Suporte VIP 24/7",
			"Itens Exclusivos + Raros",
			"Eventos Exclusivos",
			"Reset +1 por dia",
			"Teleporte Ilimitado",
		},
	},
	{
		ID:    4,
		Name:  "VIP Diamante",
		Price: 79.99,
		Benefits: []string{
			"EXP +75%",
			"Drop +60%",
			"Zen +100%",
			"Respawn -90%",
			"Chat Totalmente Ilimitado",
			"Suporte VIP 24/7 + WhatsApp",
			"Itens Exclusivos + Raros + Únicos",
			"Eventos Exclusivos + Personalizados",
			"Reset +2 por dia",
			"Teleporte Ilimitado + Especial",
			"Guild Master",
			"Acesso Beta",
		},
	},
}
