package supervisor

import "fmt"

// GetURI returns a connection URI for the running instance. db, if
// non-empty, is appended as the path component; ip overrides the bind
// address reported in InstanceInfo (useful when the instance was bound
// to 0.0.0.0 and the caller needs a routable loopback address instead).
func (s *Supervisor) GetURI(db, ip string) (string, error) {
	info, err := s.InstanceInfo()
	if err != nil {
		return "", err
	}

	host := ip
	if host == "" {
		host = info.IP
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return fmt.Sprintf("mongodb://%s:%d/%s", host, info.Port, db), nil
}
