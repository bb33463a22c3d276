package types

type Reviewer struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Orcid       string `json:"orcid"`
	GithubUser  string `json:"github_user"`
	Email       string `json:"email"`
}

type Reviewers []Reviewer

// Find matches a reviewer by id, email or github user name.
func (rs Reviewers) Find(who string) *Reviewer {
	for i := range rs {
		r := &rs[i]
		if who == "" {
			continue
		}
		if r.Id == who || r.Email == who || r.GithubUser == who {
			return r
		}
	}
	return nil
}
