package db

// Repositories provides access to all database repositories
type Repositories struct {
	Actors        *ActorRepository
	Sessions      *SessionRepository
	PlaylistItems *PlaylistItemRepository
	Requests      *RequestRepository
	RequestLogs   *RequestLogRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Actors:        NewActorRepository(db),
		Sessions:      NewSessionRepository(db),
		PlaylistItems: NewPlaylistItemRepository(db),
		Requests:      NewRequestRepository(db),
		RequestLogs:   NewRequestLogRepository(db),
	}
}
