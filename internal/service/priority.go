package service

import (
	"sort"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/models"
)

// normalizePriorities returns copies of one owner's items with a unique
// positive priority each, sorted ascending.
//
// Items are walked in the order the store returned them (newest first). An
// item keeps its stored priority if it is positive and not already claimed by
// an earlier item; every other item gets the lowest unused integer from 1 up,
// again in walk order. Nothing is written back.
func normalizePriorities(items []*models.Item) []*models.Item {
	out := make([]*models.Item, len(items))
	claimed := make(map[int]bool, len(items))
	var pending []int

	for i, item := range items {
		c := item.Clone()
		out[i] = c
		if p := c.PriorityValue(); p > 0 && !claimed[p] {
			claimed[p] = true
			continue
		}
		pending = append(pending, i)
	}

	next := 1
	for _, i := range pending {
		for claimed[next] {
			next++
		}
		p := next
		out[i].Priority = &p
		claimed[p] = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriorityValue() < out[j].PriorityValue()
	})
	return out
}

// nextPriority is one past the highest priority, or 1 for an empty list.
func nextPriority(items []*models.Item) int {
	highest := 0
	for _, item := range items {
		if p := item.PriorityValue(); p > highest {
			highest = p
		}
	}
	return highest + 1
}

// findNeighbor returns the item a move from priority p swaps with: the
// greatest priority below p for up, the least above p for down. Among equal
// candidates the first in slice order wins.
func findNeighbor(items []*models.Item, p int, dir models.Direction) *models.Item {
	var best *models.Item
	for _, item := range items {
		q := item.PriorityValue()
		switch dir {
		case models.DirectionUp:
			if q < p && (best == nil || q > best.PriorityValue()) {
				best = item
			}
		case models.DirectionDown:
			if q > p && (best == nil || q < best.PriorityValue()) {
				best = item
			}
		}
	}
	return best
}

// orderAcrossOwners groups items by owner, normalizes each group and
// flattens them by the owners' roster display rank. Owners missing from the
// roster come last, ordered by id. Items owned by excludeID are dropped.
func orderAcrossOwners(items []*models.Item, roster *auth.Roster, excludeID string) []*models.Item {
	groups := make(map[string][]*models.Item)
	var owners []string
	for _, item := range items {
		if item.UserID == excludeID {
			continue
		}
		if _, seen := groups[item.UserID]; !seen {
			owners = append(owners, item.UserID)
		}
		groups[item.UserID] = append(groups[item.UserID], item)
	}

	sort.SliceStable(owners, func(i, j int) bool {
		ri, knownI := roster.DisplayRank(owners[i])
		rj, knownJ := roster.DisplayRank(owners[j])
		if knownI != knownJ {
			return knownI
		}
		if ri != rj {
			return ri < rj
		}
		return owners[i] < owners[j]
	})

	out := make([]*models.Item, 0, len(items))
	for _, owner := range owners {
		out = append(out, normalizePriorities(groups[owner])...)
	}
	return out
}

// GroupByOwner splits an aggregated, owner-ordered item list into one group
// per owner, keeping the order.
func GroupByOwner(items []*models.Item, roster *auth.Roster) []models.OwnerGroup {
	var groups []models.OwnerGroup
	for _, item := range items {
		if n := len(groups); n > 0 && groups[n-1].Owner.ID == item.UserID {
			groups[n-1].Items = append(groups[n-1].Items, item)
			continue
		}

		owner := models.FamilyUser{ID: item.UserID, Name: item.UserName}
		if member, ok := roster.GetFamilyMemberByID(item.UserID); ok {
			owner = *member
		} else if owner.Name == "" {
			owner.Name = "Unknown User"
		}
		groups = append(groups, models.OwnerGroup{Owner: owner, Items: []*models.Item{item}})
	}
	return groups
}
