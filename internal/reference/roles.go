package reference

import "strings"

// Lowest — младшая роль (роль по умолчанию).
func (c *RoleCatalog) Lowest() Role {
	return c.Roles[0]
}

// Normalize приводит токен роли к имени из справочника.
func (c *RoleCatalog) Normalize(token string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	for _, r := range c.Roles {
		if r.Name == t {
			return r.Name, true
		}
	}
	return "", false
}

// Highest возвращает старшую из присутствующих ролей; неизвестные имена игнорируются.
// Если ни одной известной роли нет — младшая роль справочника.
func (c *RoleCatalog) Highest(names []string) Role {
	best := c.Lowest()
	found := false
	for _, n := range names {
		name, ok := c.Normalize(n)
		if !ok {
			continue
		}
		for _, r := range c.Roles {
			if r.Name == name && (!found || r.Order > best.Order) {
				best, found = r, true
			}
		}
	}
	return best
}

// AgeBounds — возрастные границы для набора ролей вызывающего.
func (c *RoleCatalog) AgeBounds(roles []string) (minAge, maxAge int, ok bool) {
	if c == nil || len(c.Roles) == 0 {
		return 0, 0, false
	}
	r := c.Highest(roles)
	return r.MinAge, r.MaxAge, true
}
