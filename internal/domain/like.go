package domain

// LikeState is the per-listing like control state held by a mounted card.
type LikeState struct {
	IsLiked    bool
	LikesCount int
}

// Flipped returns the optimistic state after a tap: unliking decrements
// (never below zero), liking increments.
func (s LikeState) Flipped() LikeState {
	if s.IsLiked {
		count := s.LikesCount - 1
		if count < 0 {
			count = 0
		}
		return LikeState{IsLiked: false, LikesCount: count}
	}
	return LikeState{IsLiked: true, LikesCount: s.LikesCount + 1}
}
