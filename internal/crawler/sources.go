package crawler

import "strings"

// sources maps news domains to the press name shown to users
var sources = []struct {
	domain string
	name   string
}{
	{"naver.com", "네이버 뉴스"},
	{"daum.net", "다음 뉴스"},
	{"chosun.com", "조선일보"},
	{"donga.com", "동아일보"},
	{"joongang.co.kr", "중앙일보"},
	{"hani.co.kr", "한겨레"},
	{"khan.co.kr", "경향신문"},
	{"yonhapnews.co.kr", "연합뉴스"},
	{"yna.co.kr", "연합뉴스"},
	{"mk.co.kr", "매일경제"},
	{"hankyung.com", "한국경제"},
	{"mt.co.kr", "머니투데이"},
	{"sedaily.com", "서울경제"},
	{"etnews.com", "전자신문"},
	{"zdnet.co.kr", "지디넷코리아"},
	{"itworld.co.kr", "ITWorld"},
}

// SourceName returns the press name for host, or the host itself when the
// outlet is unknown
func SourceName(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, s := range sources {
		if matchesDomain(host, s.domain) {
			return s.name
		}
	}
	return host
}

func matchesDomain(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
